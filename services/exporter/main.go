package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/iulianpascalau/aliyun-exporter/commonGo"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/config"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/factory"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/urfave/cli"
)

const (
	defaultLogsPath      = "logs"
	logFilePrefix        = "aliyun-exporter"
	logFileLifeSpanInSec = 86400 // 24h
	logFileLifeSpanInMB  = 1024  // 1GB
	defaultPort          = 9525
)

// appVersion should be populated at build time using ldflags
// Usage examples:
// Linux/macOS:
//
//	go build -v -ldflags="-X main.appVersion=$(git describe --all | cut -c7-32)
var appVersion = "undefined"
var fileLogging commonGo.FileLoggingHandler

var (
	exporterHelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}
   {{if len .Authors}}
AUTHOR:
   {{range .Authors}}{{ . }}{{end}}
   {{end}}{{if .Commands}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}
VERSION:
   {{.Version}}
   {{end}}
`

	log = logger.GetOrCreate("main")

	// logLevel defines the logger level
	logLevel = cli.StringFlag{
		Name: "log-level",
		Usage: "This flag specifies the logger `level(s)`. It can contain multiple comma-separated value. For example" +
			", if set to *:INFO the logs for all packages will have the INFO level. However, if set to *:INFO,collector:DEBUG" +
			" the logs for all packages will have the INFO level, excepting the collector package which will receive a DEBUG" +
			" log level.",
		Value: "*:" + logger.LogInfo.String(),
	}
	// logFile is used when the log output needs to be logged in a file
	logSaveFile = cli.BoolFlag{
		Name:  "log-save",
		Usage: "Boolean option for enabling log saving. If set, it will automatically save all the logs into a file.",
	}
	// workingDirectory defines a flag for the path for the working directory.
	workingDirectory = cli.StringFlag{
		Name:  "working-directory",
		Usage: "This flag specifies the `directory` where the exporter will store its logs.",
		Value: "",
	}
	configFile = cli.StringFlag{
		Name:  "config-file, c",
		Usage: "The `path` to the TOML or YAML configuration file.",
		Value: "aliyun-exporter.yml",
	}
	hosts = cli.StringSliceFlag{
		Name:  "host, H",
		Usage: "The `host` to listen on. Can be repeated, every host is combined with every port. Empty means all interfaces.",
	}
	ports = cli.StringSliceFlag{
		Name:  "port, p",
		Usage: "The `port` to listen on. Can be repeated.",
	}
	envFile = cli.StringFlag{
		Name:  "env-file",
		Usage: "The `path` to an optional .env file holding the ALIYUN_* overrides.",
		Value: "./.env",
	}
)

func main() {
	app := cli.NewApp()
	cli.AppHelpTemplate = exporterHelpTemplate
	app.Name = "Aliyun CloudMonitor exporter"
	app.Version = fmt.Sprintf("%s/%s/%s-%s", appVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	app.Usage = "This is the entry point for starting a Prometheus exporter for Alibaba Cloud CloudMonitor metrics"
	app.Flags = []cli.Flag{
		logLevel,
		logSaveFile,
		workingDirectory,
		configFile,
		hosts,
		ports,
		envFile,
	}
	app.Authors = []cli.Author{
		{
			Name:  "Iulian Pascalau",
			Email: "iulian.pascalau@gmail.com",
		},
	}

	app.Action = run

	defer func() {
		if fileLogging != nil {
			_ = fileLogging.Close()
		}
	}()

	err := app.Run(os.Args)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	saveLogFile := ctx.GlobalBool(logSaveFile.Name)
	workingDir := ctx.GlobalString(workingDirectory.Name)

	err := logger.SetLogLevel(ctx.GlobalString(logLevel.Name))
	if err != nil {
		return err
	}

	fileLogging, err = commonGo.AttachFileLogger(log, defaultLogsPath, logFilePrefix, saveLogFile, workingDir)
	if err != nil {
		return err
	}

	if !check.IfNil(fileLogging) {
		timeLogLifeSpan := time.Second * time.Duration(logFileLifeSpanInSec)
		sizeLogLifeSpanInMB := uint64(logFileLifeSpanInMB)
		err = fileLogging.ChangeFileLifeSpan(timeLogLifeSpan, sizeLogLifeSpanInMB)
		if err != nil {
			return err
		}
	}

	log.Info("Starting aliyun exporter", "version", appVersion, "pid", os.Getpid())

	loaded, err := commonGo.LoadEnvFile(ctx.GlobalString(envFile.Name))
	if err != nil {
		return err
	}
	log.Debug("env file", "path", ctx.GlobalString(envFile.Name), "loaded", loaded)

	cfg, err := loadConfig(ctx.GlobalString(configFile.Name))
	if err != nil {
		return err
	}

	listenAddresses := createListenAddresses(ctx.GlobalStringSlice(hosts.Name), ctx.GlobalStringSlice(ports.Name))
	handler, err := factory.NewComponentsHandler(factory.ArgsComponentsHandler{
		Config:          cfg,
		ListenAddresses: listenAddresses,
	})
	if err != nil {
		return err
	}

	err = handler.Start()
	if err != nil {
		handler.Close()
		return err
	}

	log.Info("Aliyun exporter started",
		"addresses", fmt.Sprintf("%v", handler.GetServer().Addresses()),
		"namespaces", len(cfg.Metrics),
		"info resources", len(cfg.InfoMetrics))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs

	log.Info("Application closing, calling Close on all subcomponents...")
	handler.Close()

	return nil
}

func loadConfig(filepath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(filepath)
	if err != nil {
		return nil, err
	}

	err = cfg.ApplyEnvOverrides(os.Getenv)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// createListenAddresses combines every host with every port
func createListenAddresses(hostList []string, portList []string) []string {
	if len(hostList) == 0 {
		hostList = []string{""}
	}
	if len(portList) == 0 {
		portList = []string{strconv.Itoa(defaultPort)}
	}

	addresses := make([]string, 0, len(hostList)*len(portList))
	for _, host := range hostList {
		for _, port := range portList {
			addresses = append(addresses, net.JoinHostPort(host, port))
		}
	}

	return addresses
}
