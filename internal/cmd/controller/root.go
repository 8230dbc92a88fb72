// Package controller starts the kufefe controller.
package controller

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	ctrl "sigs.k8s.io/controller-runtime"
	clog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	command "github.com/kufefe/kufefe/internal/cmd"
	"github.com/kufefe/kufefe/pkg/version"
)

// defaultWorkers is the reconciler concurrency when
// REQUEST_RECONCILER_WORKERS is unset.
const defaultWorkers = 50

type KufefeController struct {
	command.DebugConfig
	Kubeconfig           string `usage:"Kubeconfig file"`
	DisableMetrics       bool   `usage:"disable metrics" name:"disable-metrics"`
	EnableLeaderElection bool   `name:"leader-elect" usage:"Enable leader election for controller manager. Enabling this will ensure there is only one active controller manager."`
}

type BindAddresses struct {
	Metrics     string
	HealthProbe string
}

var (
	setupLog = ctrl.Log.WithName("setup")
	zopts    = &zap.Options{
		Development: true,
	}
)

func (k *KufefeController) PersistentPre(_ *cobra.Command, _ []string) error {
	if err := k.SetupDebug(); err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	zopts = k.OverrideZapOpts(zopts)

	return nil
}

func (k *KufefeController) Run(cmd *cobra.Command, args []string) error {
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(zopts)))
	ctx := clog.IntoContext(cmd.Context(), ctrl.Log)

	kubeconfig := ctrl.GetConfigOrDie()

	leaderOpts, err := command.NewLeaderElectionOptions()
	if err != nil {
		return err
	}

	bindAddresses := BindAddresses{
		Metrics:     ":8080",
		HealthProbe: ":8081",
	}
	if d := os.Getenv("KUFEFE_METRICS_BIND_ADDRESS"); d != "" {
		bindAddresses.Metrics = d
	}
	if d := os.Getenv("KUFEFE_HEALTHPROBE_BIND_ADDRESS"); d != "" {
		bindAddresses.HealthProbe = d
	}

	workers := defaultWorkers
	if d := os.Getenv("REQUEST_RECONCILER_WORKERS"); d != "" {
		w, err := strconv.Atoi(d)
		if err != nil {
			setupLog.Error(err, "failed to parse REQUEST_RECONCILER_WORKERS", "value", d)
		} else {
			workers = w
		}
	}

	return start(
		ctx,
		kubeconfig,
		k.EnableLeaderElection,
		leaderOpts,
		bindAddresses,
		k.DisableMetrics,
		workers,
	)
}

func App() *cobra.Command {
	root := command.Command(&KufefeController{}, cobra.Command{
		Version: version.FriendlyVersion(),
	})
	fs := flag.NewFlagSet("", flag.ExitOnError)
	zopts.BindFlags(fs)
	ctrl.RegisterFlags(fs)
	root.Flags().AddGoFlagSet(fs)

	return root
}
