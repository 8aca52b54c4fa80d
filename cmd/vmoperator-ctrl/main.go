// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	corev1 "k8s.io/api/core/v1"
	apiextensionsclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/record"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/config"
	"github.com/jdrupes-go/vmoperator/pkg/manager"
	"github.com/jdrupes-go/vmoperator/pkg/metricsexporter"
	"github.com/jdrupes-go/vmoperator/pkg/util/logs"
)

const controllerAgentName = "vmoperator-manager"

var (
	masterURL    string
	kubeconfig   string
	namespace    string
	configFile   string
	development  bool
	logLevel     string
	metricsPort  int
	buildVersion string
	buildDate    string
)

func main() {
	flag.Parse()

	level := zapcore.InfoLevel
	if err := level.Set(logLevel); err != nil {
		level = zapcore.InfoLevel
	}
	log, err := logs.InitLogs(development, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}

	if namespace == "" {
		log.Fatal("a namespace must be specified")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalw("loading operator configuration", "error", err)
	}
	cfg.Namespace = namespace

	log.Debugw("building kubeconfig")
	restCfg, err := clientcmd.BuildConfigFromFlags(masterURL, kubeconfig)
	if err != nil {
		log.Fatalw("building kubeconfig", "error", err)
	}

	log.Debugw("building kubernetes clientset")
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		log.Fatalw("building kubernetes clientset", "error", err)
	}

	log.Debugw("building dynamic client")
	dynClient, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		log.Fatalw("building dynamic client", "error", err)
	}

	log.Debugw("building apiextensions clientset")
	apiextClient, err := apiextensionsclient.NewForConfig(restCfg)
	if err != nil {
		log.Fatalw("building apiextensions clientset", "error", err)
	}

	if err := vmoperatorv1.AddToScheme(scheme.Scheme); err != nil {
		log.Warnw("adding vmoperator types to event scheme", "error", err)
	}
	recorder := newEventRecorder(clientset, scheme.Scheme, log)

	log.Infow("starting vmoperator manager", "namespace", namespace, "version", buildVersion, "built", buildDate)
	mgr := manager.New(cfg, clientset, dynClient, apiextClient, recorder, log)

	metricsexporter.StartServer(metricsPort, mgr.Healthy, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalw("manager exited", "error", err)
	}
}

func newEventRecorder(clientset kubernetes.Interface, s *runtime.Scheme, log *zap.SugaredLogger) record.EventRecorder {
	broadcaster := record.NewBroadcaster()
	broadcaster.StartLogging(log.Infof)
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: clientset.CoreV1().Events("")})
	return broadcaster.NewRecorder(s, corev1.EventSource{Component: controllerAgentName})
}

func init() {
	flag.StringVar(&kubeconfig, "kubeconfig", "", "Path to a kubeconfig. Only required if out-of-cluster.")
	flag.StringVar(&masterURL, "master", "", "The address of the Kubernetes API server. Overrides any value in kubeconfig. Only required if out-of-cluster.")
	flag.StringVar(&namespace, "namespace", "", "The namespace in which this operator manages VirtualMachine resources.")
	flag.StringVar(&configFile, "config", "", "Path to the operator configuration YAML file.")
	flag.BoolVar(&development, "development", false, "Use zap's human-readable console encoder instead of the JSON production encoder.")
	flag.StringVar(&logLevel, "logLevel", "info", "Minimum zap log level (debug, info, warn, error).")
	flag.IntVar(&metricsPort, "metricsPort", 9100, "Port serving /metrics and /healthz.")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s version %s\n", os.Args[0], buildVersion)
		fmt.Fprintf(os.Stderr, "built %s\n", buildDate)
		flag.PrintDefaults()
	}
}
