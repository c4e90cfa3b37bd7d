package models

// MConfig Structure
type MConfig struct {
	Name      string            `yaml:"name"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	LogLevel  string            `yaml:"log_level"`
	GrpcHost  string            `yaml:"grpc_host"`
	GrpcPort  int               `yaml:"grpc_port"` // 0 disables the control endpoint
	Secret    string            `yaml:"secret"`
	Greeting  string            `yaml:"greeting"`
	Symbols   map[string]string `yaml:"symbols"` // alias -> canonical
	Feed      MFeedConfig       `yaml:"feed"`
	Market    MMarketConfig     `yaml:"market"`
	Broadcast MBroadcastConfig  `yaml:"broadcast"`
	Storage   MStorageConfig    `yaml:"storage"`
	NATS      MNATSConfig       `yaml:"nats"`
	Redis     MRedisConfig      `yaml:"redis"`
}

type MFeedConfig struct {
	BaseURL        string `yaml:"base_url"`
	Login          int64  `yaml:"login"`
	Password       string `yaml:"password"`
	Server         string `yaml:"server"`
	RequestTimeout int    `yaml:"timeout"` // seconds
	MaxRetries     int    `yaml:"retries"`
	LoginRetries   int    `yaml:"login_retries"`
}

type MMarketConfig struct {
	StatusStrategy  string `yaml:"status_strategy"` // "calendar" or "feed"
	Timezone        string `yaml:"timezone"`
	CloseWeekday    string `yaml:"close_weekday"`
	CloseTime       string `yaml:"close_time"` // HH:MM in Timezone
	ClosureHours    int    `yaml:"closure_hours"`
	HolidayCalendar string `yaml:"holiday_calendar"` // optional MIC, e.g. "xnys"
}

type MBroadcastConfig struct {
	IntervalMillis int `yaml:"interval_ms"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // "none", "sqlite" or "postgres"
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionHours     int    `yaml:"retention_hours"`
}

type MNATSConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	ClientID       string `yaml:"client_id"`
	SubjectPrefix  string `yaml:"subject_prefix"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
	MaxReconnects  int    `yaml:"max_reconnects"`
}

type MRedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Namespace  string `yaml:"namespace"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}
