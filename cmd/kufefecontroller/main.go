// Package main provides the entrypoint for the kufefe-controller binary.
package main

import (
	"os"

	"github.com/rancher/wrangler/v3/pkg/signals"
	"github.com/sirupsen/logrus"

	"github.com/kufefe/kufefe/internal/cmd/controller"
)

func main() {
	ctx := signals.SetupSignalContext()
	cmd := controller.App()
	if err := cmd.ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		os.Exit(2)
	}
}
