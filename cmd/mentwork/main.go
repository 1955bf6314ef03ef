// Command mentwork はメンター・メンティーのマッチングAPIサーバーとワーカーを起動する。
//
// 使い方:
//
//	mentwork [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/mentwork/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mentwork: %v\n", err)
		os.Exit(1)
	}
}
