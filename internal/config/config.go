package config

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Sheets  SheetsConfig
	API     APIConfig
	Preview PreviewConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

// SheetsConfig names the two tabular datasets the catalog serves.
type SheetsConfig struct {
	Books    string
	Students string
}

type APIConfig struct {
	Token string
}

// PreviewConfig controls the advisory lifetime reported for staged
// two-phase mutations.
type PreviewConfig struct {
	TTLSeconds int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4080,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Sheets: SheetsConfig{
			Books:    "参考書マスター",
			Students: "生徒一覧",
		},
		Preview: PreviewConfig{
			TTLSeconds: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/crambooks/config.json, then applies CRAMBOOKS_*
// environment variable overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
