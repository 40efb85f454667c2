package main

import (
	"os"

	"github.com/sandeepkv93/omada-captive-portal/internal/tools/common"
	"github.com/sandeepkv93/omada-captive-portal/internal/tools/portalctl"
)

func main() {
	_ = common.LoadEnvFile(".env")
	if err := portalctl.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
