package services

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"

	"blueprint-backend/models"
)

const devicesPath = "/v1/iot-device/all"

// leadingNumber - 문자열 앞부분의 숫자 ("12.5m" → 12.5)
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// LoaderOptions - 디바이스 API 접속 정보
type LoaderOptions struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// DeviceLoader fetches the device inventory from the platform API and turns
// it into normalized devices.
type DeviceLoader struct {
	opts   LoaderOptions
	logger *log.Logger
}

// NewDeviceLoader - 로더 생성
func NewDeviceLoader(opts LoaderOptions, logger *log.Logger) *DeviceLoader {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &DeviceLoader{opts: opts, logger: orDiscard(logger).WithPrefix("loader")}
}

// apiDevice mirrors one entry of the inventory response. Coordinates arrive
// either as numbers or numeric strings.
type apiDevice struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Zone    any    `json:"zone"`
	Details *struct {
		ID   any `json:"id"`
		Data *struct {
			Name string `json:"name"`
		} `json:"data"`
	} `json:"details"`
	Location *struct {
		X       any `json:"x"`
		Y       any `json:"y"`
		Z       any `json:"z"`
		Quality any `json:"quality"`
	} `json:"location"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    []apiDevice     `json:"data"`
	Message json.RawMessage `json:"message,omitempty"`
}

// Fetch downloads and converts the device inventory.
func (l *DeviceLoader) Fetch() ([]models.Device, error) {
	if l.opts.BaseURL == "" {
		return nil, models.NewError(models.ErrCodeInvalidInput, "device API base url is not configured")
	}

	start := time.Now()
	agent := fiber.Get(l.opts.BaseURL + devicesPath)
	agent.Timeout(l.opts.Timeout)
	if l.opts.Token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+l.opts.Token)
	}
	if err := agent.Parse(); err != nil {
		return nil, models.WrapError(models.ErrCodeUpstream, err, "device API request")
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, models.WrapError(models.ErrCodeUpstream, errs[0], "device API call")
	}
	if code != fiber.StatusOK {
		return nil, models.NewError(models.ErrCodeUpstream, "device API returned status %d", code)
	}

	devices, skipped, err := decodeDevices(body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		l.logger.Warn("inventory entries without id skipped", "count", skipped)
	}

	l.logger.Info("devices fetched", "count", len(devices), "elapsed", time.Since(start).Round(time.Millisecond))
	return devices, nil
}

// DecodeDevices converts an inventory response body into devices. Entries
// with neither details.id nor a topic are skipped.
func DecodeDevices(body []byte) ([]models.Device, error) {
	devices, _, err := decodeDevices(body)
	return devices, err
}

func decodeDevices(body []byte) ([]models.Device, int, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, models.WrapError(models.ErrCodeUpstream, err, "device API response")
	}
	if !resp.Success {
		return nil, 0, models.NewError(models.ErrCodeUpstream, "device API reported failure: %s", string(resp.Message))
	}

	devices := make([]models.Device, 0, len(resp.Data))
	skipped := 0
	for _, item := range resp.Data {
		d := item.device()
		if d.ID == "" {
			skipped++
			continue
		}
		devices = append(devices, d)
	}
	return devices, skipped, nil
}

func (item apiDevice) device() models.Device {
	d := models.Device{
		ID:    item.id(),
		Type:  models.DeviceType(item.Type),
		Topic: item.Topic,
	}
	if d.Type == "" {
		d.Type = models.DeviceTypeDevice
	}
	if item.Details != nil && item.Details.Data != nil {
		d.Name = item.Details.Data.Name
	}
	if item.Location != nil {
		d.X = parseCoordinate(item.Location.X)
		d.Y = parseCoordinate(item.Location.Y)
		d.Z = parseCoordinate(item.Location.Z)
		d.Quality = parseCoordinate(item.Location.Quality)
	}
	if zone := stringValue(item.Zone); zone != "" {
		d.Zone = &zone
	}
	return d.Normalized()
}

// id - details.id 우선, 없으면 topic의 마지막 세그먼트
func (item apiDevice) id() string {
	if item.Details != nil {
		if id := stringValue(item.Details.ID); id != "" {
			return id
		}
	}
	parts := strings.Split(item.Topic, "/")
	return parts[len(parts)-1]
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// parseCoordinate accepts numbers and strings starting with a number
// ("12.5m" is 12.5); anything else is 0.
func parseCoordinate(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		m := leadingNumber.FindString(strings.TrimSpace(t))
		if m == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if !models.IsFinite(f) {
		return 0
	}
	return f
}
