package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// 빌드 시 -ldflags로 주입
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// 설정 파일 없이도 동작
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blueprint %s (%s) %s/%s %s\n",
			Version, GitCommit, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}
