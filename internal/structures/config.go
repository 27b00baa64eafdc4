package structures

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type Persistence struct {
	HistoryPath       string `yaml:"historyPath" validate:"required|unixPath"`
	SubscriptionsPath string `yaml:"subscriptionsPath" validate:"required|unixPath"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

// SourceConfig describes how the upstream YouTube feed is reached.
type SourceConfig struct {
	CookiesPath string `yaml:"cookiesPath" validate:"required|unixPath"`
	Timezone    string `yaml:"timezone" validate:"required"`
}

// MonitorConfig intervals are plain seconds, both in the YAML and in
// the env overrides; callers convert at the use site.
type MonitorConfig struct {
	ScanInterval            int  `yaml:"scanInterval" validate:"required|min:30|max:300"`
	ScanIntervalRecommended int  `yaml:"scanIntervalRecommended" validate:"min:60|max:3600"`
	FetchRecommended        bool `yaml:"fetchRecommended"`
	DuplicateMinutes        int  `yaml:"duplicateMinutes" validate:"required|min:1|max:60"`
	RefreshCooldown         int  `yaml:"refreshCooldown" validate:"required|min:1"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Monitor     MonitorConfig `yaml:"monitor"`
	Source      SourceConfig  `yaml:"source"`
	WebServer   Server        `yaml:"webServer"`
	Persistence Persistence   `yaml:"persistence"`
	Logger      LoggerConfig  `yaml:"logger"`
	Cache       CacheConfig   `yaml:"cache"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}
