package app

import (
	"time"

	"github.com/stockcast/stockcast-backend/internal/platform/envutil"
)

type Config struct {
	ModelDir        string
	PolicyPath      string
	RetrainEpochs   int
	RetrainBatch    int
	RetrainLR       float64
	AutoPromote     bool
	RetrainInterval time.Duration
	MaxForecastDays int
	Cache           CacheProviderConfig
}

func LoadConfig() (Config, error) {
	cacheCfg, err := resolveCacheProviderConfig()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ModelDir:        envutil.String("MODEL_DIR", "data/model"),
		PolicyPath:      envutil.String("ACCEPTANCE_POLICY_PATH", ""),
		RetrainEpochs:   envutil.Int("RETRAIN_EPOCHS", 10),
		RetrainBatch:    envutil.Int("RETRAIN_BATCH_SIZE", 128),
		RetrainLR:       envutil.Float("RETRAIN_LEARNING_RATE", 0.01),
		AutoPromote:     envutil.Bool("RETRAIN_AUTO_PROMOTE", true),
		RetrainInterval: envutil.Duration("RETRAIN_INTERVAL", 0),
		MaxForecastDays: envutil.Int("MAX_FORECAST_DAYS", 365),
		Cache:           cacheCfg,
	}, nil
}
