package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/wikimedia/research-similar-users/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.SetDefault("source.pageSize", 500)
	viper.SetDefault("similarity.defaultK", 50)
	viper.SetDefault("similarity.maxK", 250)
	viper.SetDefault("similarity.maxNeighbors", 250)
	viper.SetDefault("similarity.maxPagesPerFetch", 1000)
	viper.SetDefault("similarity.groupBatchSize", 50)
	viper.SetDefault("similarity.temporalOffsets", []int{-1, 0, 1})
	viper.SetDefault("similarity.namespaces", []int{0})

	viper.BindEnv("logger.level", "SU_LOG_LEVEL")
	viper.BindEnv("webServer.port", "SU_PORT")
	viper.BindEnv("source.apiUrl", "SU_SOURCE_API_URL")
	viper.BindEnv("baseline.dir", "SU_BASELINE_DIR")
	viper.BindEnv("persistence.saveInterval", "SU_SAVE_INTERVAL")
	viper.BindEnv("cache.enabled", "SU_CACHE_ENABLED")
	viper.BindEnv("cache.size", "SU_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "SimilarUsers"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
