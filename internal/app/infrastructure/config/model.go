package config

type Config struct {
	App       App       `json:"app" envPrefix:"APP_"`
	IRC       IRC       `json:"irc" envPrefix:"IRC_"`
	Inference Inference `json:"inference" envPrefix:"INFERENCE_"`
}

type App struct {
	LogLevel   string `json:"log_level" env:"LOG_LEVEL"`
	LogFile    string `json:"log_file" env:"LOG_FILE"`
	GinMode    string `json:"gin_mode" env:"GIN_MODE"`
	ListenAddr string `json:"listen_addr" env:"LISTEN_ADDR"` // empty disables the HTTP surface
	AuthToken  string `json:"auth_token" env:"AUTH_TOKEN"`
}

// IRC is the per-connection configuration. It is never changed in place:
// a new IRC value means a new connection.
type IRC struct {
	Server                  string   `json:"server" env:"SERVER"`
	Port                    int      `json:"port" env:"PORT"`
	Nick                    string   `json:"nick" env:"NICK"`
	Channels                []string `json:"channels" env:"CHANNELS" envSeparator:","`
	TLS                     *bool    `json:"tls" env:"TLS"`
	Password                string   `json:"password,omitempty" env:"PASSWORD"`
	FloodDelayMs            int      `json:"flood_delay_ms" env:"FLOOD_DELAY_MS"` // 0 = default, negative disables pacing
	MaxMessageLength        int      `json:"max_message_length" env:"MAX_MESSAGE_LENGTH"`
	CommandPrefix           string   `json:"command_prefix" env:"COMMAND_PREFIX"`
	Username                string   `json:"username,omitempty" env:"USERNAME"`
	Realname                string   `json:"realname,omitempty" env:"REALNAME"`
	AutoReconnectMaxWaitMs  int      `json:"auto_reconnect_max_wait_ms" env:"AUTO_RECONNECT_MAX_WAIT_MS"`
	AutoReconnectMaxRetries int      `json:"auto_reconnect_max_retries" env:"AUTO_RECONNECT_MAX_RETRIES"`
	Proxy                   Proxy    `json:"proxy" envPrefix:"PROXY_"`
}

type Proxy struct {
	Address string `json:"address" env:"ADDRESS"`
	Port    int    `json:"port" env:"PORT"`
}

type Inference struct {
	BaseURL      string `json:"base_url" env:"BASE_URL"`
	APIKey       string `json:"api_key,omitempty" env:"API_KEY"`
	Model        string `json:"model" env:"MODEL"`
	SystemPrompt string `json:"system_prompt" env:"SYSTEM_PROMPT"`
	HistorySize  int    `json:"history_size" env:"HISTORY_SIZE"`    // turns kept per session
	HistoryTTL   int    `json:"history_ttl_secs" env:"HISTORY_TTL"` // idle seconds before a session is forgotten
	HistoryFile  string `json:"history_file" env:"HISTORY_FILE"`
}
