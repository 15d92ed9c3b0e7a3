package services

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"blueprint-backend/algorithms"
	"blueprint-backend/models"
)

// MaxFloors - 허용되는 최대 층 수
const MaxFloors = 200

// FloorRepository persists per-floor blueprint images, height ranges,
// boundary polygons and starting points.
type FloorRepository struct {
	db      *gorm.DB
	maxSide int // 업로드 이미지 최대 변 길이 (0이면 제한 없음)
	logger  *log.Logger
}

// NewFloorRepository - 층 저장소 생성
func NewFloorRepository(db *gorm.DB, maxImageSide int, logger *log.Logger) *FloorRepository {
	return &FloorRepository{db: db, maxSide: maxImageSide, logger: orDiscard(logger).WithPrefix("floors")}
}

// SetFloorCount makes floors 1..n exist and removes any floor above n.
func (r *FloorRepository) SetFloorCount(n int) ([]models.Floor, error) {
	if n < 1 || n > MaxFloors {
		return nil, models.NewError(models.ErrCodeInvalidInput, "number of floors must be between 1 and %d, got %d", MaxFloors, n)
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("number > ?", n).Delete(&models.Floor{}).Error; err != nil {
			return err
		}
		var existing []int
		if err := tx.Model(&models.Floor{}).Pluck("number", &existing).Error; err != nil {
			return err
		}
		have := make(map[int]bool, len(existing))
		for _, num := range existing {
			have[num] = true
		}

		var missing []models.Floor
		for num := 1; num <= n; num++ {
			if !have[num] {
				missing = append(missing, models.Floor{Number: num})
			}
		}
		if len(missing) == 0 {
			return nil
		}
		return tx.Create(&missing).Error
	})
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "set floor count")
	}

	r.logger.Info("floor count set", "floors", n)
	return r.ListFloors()
}

// ListFloors returns every floor ordered by number, without image data.
func (r *FloorRepository) ListFloors() ([]models.Floor, error) {
	var floors []models.Floor
	err := r.db.Omit("image_data").Order("number ASC").Find(&floors).Error
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "list floors")
	}
	return floors, nil
}

// Floor returns one floor including its image data.
func (r *FloorRepository) Floor(number int) (*models.Floor, error) {
	var f models.Floor
	err := r.db.Where("number = ?", number).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewError(models.ErrCodeFloorNotFound, "floor %d not found", number)
	}
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "load floor %d", number)
	}
	return &f, nil
}

func (r *FloorRepository) update(number int, fields map[string]any) (*models.Floor, error) {
	f, err := r.Floor(number)
	if err != nil {
		return nil, err
	}
	if err := r.db.Model(f).Updates(fields).Error; err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "update floor %d", number)
	}
	return r.Floor(number)
}

// UploadImage processes a raw floor-plan upload and stores it for the floor.
func (r *FloorRepository) UploadImage(number int, data []byte) (*models.Floor, error) {
	if _, err := r.Floor(number); err != nil {
		return nil, err
	}

	processed, err := ProcessBlueprint(data, r.maxSide)
	if err != nil {
		return nil, err
	}

	f, err := r.update(number, map[string]any{
		"image_id":     uuid.NewString(),
		"image_data":   processed.PNG,
		"image_width":  processed.Width,
		"image_height": processed.Height,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("blueprint stored", "floor", number, "image", f.ImageID,
		"width", f.ImageWidth, "height", f.ImageHeight, "bytes", len(processed.PNG))
	return f, nil
}

// RemoveImage deletes the floor's blueprint.
func (r *FloorRepository) RemoveImage(number int) (*models.Floor, error) {
	return r.update(number, map[string]any{
		"image_id":     "",
		"image_data":   nil,
		"image_width":  0,
		"image_height": 0,
	})
}

// Image returns the stored PNG and its descriptor.
func (r *FloorRepository) Image(number int) ([]byte, models.BlueprintImage, error) {
	f, err := r.Floor(number)
	if err != nil {
		return nil, models.BlueprintImage{}, err
	}
	if !f.HasImage() {
		return nil, models.BlueprintImage{}, models.NewError(models.ErrCodeFloorNotFound, "floor %d has no image", number)
	}
	return f.ImageData, models.BlueprintImage{
		ImageID: f.ImageID,
		Floor:   f.Number,
		Width:   f.ImageWidth,
		Height:  f.ImageHeight,
	}, nil
}

// SetZAxis sets the floor's height range.
func (r *FloorRepository) SetZAxis(number int, minZ, maxZ float64) (*models.Floor, error) {
	if !models.IsFinite(minZ) || !models.IsFinite(maxZ) || minZ > maxZ {
		return nil, models.NewError(models.ErrCodeInvalidInput, "invalid z range [%v, %v]", minZ, maxZ)
	}
	return r.update(number, map[string]any{"min_z": minZ, "max_z": maxZ})
}

// SetBoundaries stores the floor's boundary polygon in world coordinates.
func (r *FloorRepository) SetBoundaries(number int, polygon []models.Point) (*models.Floor, error) {
	if err := algorithms.ValidatePolygon(polygon); err != nil {
		return nil, err
	}
	f, err := r.Floor(number)
	if err != nil {
		return nil, err
	}
	f.Boundaries = polygon
	if err := r.db.Model(f).Select("boundaries").Updates(f).Error; err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "update floor %d", number)
	}
	return r.Floor(number)
}

// SetStartingPoint stores where tags on this floor start.
func (r *FloorRepository) SetStartingPoint(number int, x, y, z float64) (*models.Floor, error) {
	if !models.IsFinite(x) || !models.IsFinite(y) || !models.IsFinite(z) {
		return nil, models.NewError(models.ErrCodeInvalidInput, "starting point must be finite")
	}
	return r.update(number, map[string]any{"start_x": x, "start_y": y, "start_z": z})
}

// FloorFor returns the first floor whose height range contains z.
func (r *FloorRepository) FloorFor(z float64) (*models.Floor, error) {
	floors, err := r.ListFloors()
	if err != nil {
		return nil, err
	}
	for i := range floors {
		if floors[i].MinZ != nil && floors[i].ContainsZ(z) {
			return &floors[i], nil
		}
	}
	return nil, models.NewError(models.ErrCodeFloorNotFound, "no floor covers z=%v", z)
}
