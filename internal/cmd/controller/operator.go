package controller

import (
	"context"
	"fmt"

	"github.com/reugn/go-quartz/quartz"

	command "github.com/kufefe/kufefe/internal/cmd"
	"github.com/kufefe/kufefe/internal/cmd/controller/reconciler"
	"github.com/kufefe/kufefe/internal/config"
	"github.com/kufefe/kufefe/internal/kubeconfig"
	"github.com/kufefe/kufefe/internal/metadata"
	"github.com/kufefe/kufefe/internal/metrics"
	"github.com/kufefe/kufefe/internal/reaper"
	"github.com/kufefe/kufefe/internal/resources"
	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"
	"github.com/kufefe/kufefe/pkg/durations"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
)

var (
	scheme = runtime.NewScheme()
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1.AddToScheme(scheme))
	//+kubebuilder:scaffold:scheme
}

func start(
	ctx context.Context,
	restConfig *rest.Config,
	enableLeaderElection bool,
	leaderOpts command.LeaderElectionOptions,
	bindAddresses BindAddresses,
	disableMetrics bool,
	workers int,
) error {
	// The process configuration must be resolved before the manager
	// exists; cluster URL discovery uses a direct, uncached client with a
	// bounded timeout.
	discoveryConfig := rest.CopyConfig(restConfig)
	discoveryConfig.Timeout = durations.RestConfigTimeout
	reader, err := client.New(discoveryConfig, client.Options{Scheme: scheme})
	if err != nil {
		setupLog.Error(err, "unable to create client for configuration discovery")
		return err
	}

	cfg, err := config.Load(ctx, reader, restConfig)
	if err != nil {
		setupLog.Error(err, "unable to resolve configuration")
		return err
	}

	setupLog.Info("issuing credentials",
		"namespace", cfg.Namespace,
		"clusterURL", cfg.ClusterURL,
		"ttl", cfg.TTL,
		"disableMetrics", disableMetrics,
	)

	var metricServerOptions metricsserver.Options
	if disableMetrics {
		metricServerOptions = metricsserver.Options{BindAddress: "0"}
	} else {
		metricServerOptions = metricsserver.Options{BindAddress: bindAddresses.Metrics}
		metrics.RegisterMetrics()
	}

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricServerOptions,
		HealthProbeBindAddress: bindAddresses.HealthProbe,

		LeaderElection:          enableLeaderElection,
		LeaderElectionID:        "kufefe-controller-leader-election",
		LeaderElectionNamespace: cfg.Namespace,
		LeaseDuration:           leaderOpts.LeaseDuration,
		RenewDeadline:           leaderOpts.RenewDeadline,
		RetryPeriod:             leaderOpts.RetryPeriod,
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		return err
	}

	meta := &metadata.Factory{TTL: cfg.TTL}
	creator := &resources.Creator{
		Client:    mgr.GetClient(),
		Meta:      meta,
		Namespace: cfg.Namespace,
	}
	assembler := &kubeconfig.Assembler{
		Reader:     mgr.GetClient(),
		ClusterURL: cfg.ClusterURL,
		Namespace:  cfg.Namespace,
	}

	if err = (&reconciler.RequestReconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),

		Creator:  creator,
		Renderer: assembler,

		Workers: workers,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Request")
		return err
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		return err
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		return err
	}

	sched := quartz.NewStdScheduler()
	job := &reaper.Reaper{
		Client:    mgr.GetClient(),
		Namespace: cfg.Namespace,
	}
	err = sched.ScheduleJob(
		quartz.NewJobDetail(job, quartz.NewJobKey(job.Description())),
		quartz.NewSimpleTrigger(durations.ReaperInterval),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reaper job: %w", err)
	}

	setupLog.Info("starting job scheduler")
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sched.Start(jobCtx)

	setupLog.Info("starting manager")
	if err := mgr.Start(ctx); err != nil {
		setupLog.Error(err, "problem running manager")
		return err
	}

	sched.Stop()

	return nil
}
