package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/confcache/lib/cache"
	"github.com/ValentinKolb/confcache/lib/common"
	"github.com/ValentinKolb/confcache/lib/model"
	"github.com/ValentinKolb/confcache/lib/model/modelcodec"
	"github.com/ValentinKolb/confcache/lib/store"
	"github.com/ValentinKolb/confcache/lib/store/lstore"
	"github.com/ValentinKolb/confcache/lib/store/mstore"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// Log is the logger of the cli
var Log = logger.GetLogger("cli")

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupCacheFlags adds the store, encoding and logging flags to a flag set
func SetupCacheFlags(flags *pflag.FlagSet) {
	d := common.DefaultConfig()

	key := "store"
	flags.String(key, string(d.Store), WrapString("The store implementation (local, memory). The memory store is lost when the command exits"))

	key = "store-dir"
	flags.String(key, d.StoreDir, WrapString("The directory of the local store"))

	key = "compression"
	flags.String(key, d.Compression, WrapString("Compression of new cache entries (none, lz4, zstd)"))

	key = "unsupported"
	flags.String(key, d.Unsupported, WrapString("What to do with values without codec (placeholder, null, fail)"))

	key = "max-depth"
	flags.Int(key, d.MaxDepth, WrapString("The maximum nesting depth of an object graph"))

	key = "workers"
	flags.Int(key, d.Workers, WrapString("How many entries are saved or loaded concurrently"))

	key = "publish-with-problems"
	flags.Bool(key, d.PublishWithProblems, WrapString("Publish and accept entries whose encoding reported problems"))

	key = "base-dir"
	flags.String(key, d.BaseDir, WrapString("The directory relative paths in build files are resolved against"))

	key = "log-level"
	flags.String(key, d.LogLevel, WrapString("The log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("confcache")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the configuration from viper
func GetConfig() common.Config {
	return common.Config{
		Store:               store.Implementation(viper.GetString("store")),
		StoreDir:            viper.GetString("store-dir"),
		Compression:         viper.GetString("compression"),
		Unsupported:         viper.GetString("unsupported"),
		MaxDepth:            viper.GetInt("max-depth"),
		Workers:             viper.GetInt("workers"),
		PublishWithProblems: viper.GetBool("publish-with-problems"),
		BaseDir:             viper.GetString("base-dir"),
		LogLevel:            viper.GetString("log-level"),
	}
}

// OpenStore creates the configured store
func OpenStore(conf common.Config) (store.IStore, error) {
	switch conf.Store {
	case store.ImplLocal:
		return lstore.NewLocalStore(conf.StoreDir)
	case store.ImplMemory:
		return mstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("invalid store %s", conf.Store)
	}
}

// OpenCache opens the configured store and creates a cache on it. The returned
// factory builds the objects of build files and of decoded entries.
func OpenCache(conf common.Config) (*cache.Cache, model.ObjectFactory, error) {
	opts, err := conf.CacheOptions()
	if err != nil {
		return nil, nil, err
	}
	reg, err := modelcodec.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	s, err := OpenStore(conf)
	if err != nil {
		return nil, nil, err
	}

	factory := model.NewObjectFactory(model.NewFileResolver(conf.BaseDir))
	opts.Graph.Services = modelcodec.Services(factory)
	return cache.New(s, reg, opts), factory, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
