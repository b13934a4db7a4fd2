package cfg

type Cfg struct {
	// Application configuration
	ConfigFile string
	Port       string
	BaseUrl    string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
