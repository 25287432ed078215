package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"hermannm.dev/devlog"
	"hermannm.dev/devlog/log"
	"hermannm.dev/gaframes/api"
	"hermannm.dev/gaframes/config"
	"hermannm.dev/gaframes/export"
	"hermannm.dev/gaframes/export/clickhouse"
	"hermannm.dev/gaframes/export/csv"
	"hermannm.dev/gaframes/export/elasticsearch"
	"hermannm.dev/gaframes/ga"
	"hermannm.dev/gaframes/query"
)

func main() {
	logLevel := new(slog.LevelVar)
	logHandler := devlog.NewHandler(os.Stdout, &devlog.Options{Level: logLevel})
	slog.SetDefault(slog.New(logHandler))

	conf, err := config.ReadFromEnv()
	if err != nil {
		log.ErrorCause(err, "failed to read config from env")
		os.Exit(1)
	}
	logLevel.Set(conf.LogLevel)

	ctx := context.Background()

	log.Info("authenticating with Google Analytics...")
	httpClient, err := ga.NewAuthenticatedClient(
		ctx,
		ga.AuthConfig{
			ClientSecretsFile: conf.Google.ClientSecretsFile,
			TokenFile:         conf.Google.TokenFile,
		},
		ga.TerminalPrompt(os.Stdin, os.Stdout),
	)
	if err != nil {
		log.ErrorCause(err, "failed to authenticate with Google Analytics")
		os.Exit(1)
	}

	service, err := ga.NewService(ctx, httpClient)
	if err != nil {
		log.ErrorCause(err, "failed to initialize reporting API client")
		os.Exit(1)
	}

	var querySets query.QuerySets
	if conf.QuerySetFile != "" {
		if querySets, err = query.LoadQuerySets(conf.QuerySetFile); err != nil {
			log.ErrorCause(err, "failed to load query sets")
			os.Exit(1)
		}
		log.Infof("loaded %d query sets from '%s'", len(querySets), conf.QuerySetFile)
	}

	sinks, err := initializeSinks(ctx, conf)
	if err != nil {
		log.ErrorCause(err, "failed to initialize export sink")
		os.Exit(1)
	}

	gaFramesAPI := api.NewGAFramesAPI(
		service,
		querySets,
		sinks,
		http.NewServeMux(),
		api.Config{
			Port:          conf.API.Port,
			DefaultViewID: conf.Google.DefaultViewID,
			DefaultSink:   conf.ExportSink,
		},
	)

	log.Infof("listening on port %s...", conf.API.Port)
	if err := gaFramesAPI.ListenAndServe(); err != nil {
		log.ErrorCause(err, "server stopped")
		os.Exit(1)
	}
}

func initializeSinks(
	ctx context.Context,
	conf config.Config,
) (map[config.SupportedSink]export.Sink, error) {
	sinks := make(map[config.SupportedSink]export.Sink, 1)

	switch conf.ExportSink {
	case config.SinkNone:
	case config.SinkClickHouse:
		log.Info("connecting to ClickHouse...")
		sink, err := clickhouse.NewClickHouseSink(ctx, conf.ClickHouse)
		if err != nil {
			return nil, err
		}
		sinks[config.SinkClickHouse] = sink
	case config.SinkElasticsearch:
		log.Info("connecting to Elasticsearch...")
		sink, err := elasticsearch.NewElasticsearchSink(conf.Elasticsearch)
		if err != nil {
			return nil, err
		}
		sinks[config.SinkElasticsearch] = sink
	case config.SinkCSV:
		sink, err := csv.NewCSVSink(conf.CSV)
		if err != nil {
			return nil, err
		}
		sinks[config.SinkCSV] = sink
	default:
		return nil, fmt.Errorf("unsupported export sink '%s'", conf.ExportSink)
	}

	return sinks, nil
}
