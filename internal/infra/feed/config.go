package feed

import "time"

const (
	DefaultURL           = "https://sportsbook-api2.p.rapidapi.com/v0/advantages/"
	DefaultAdvantageType = "PLUS_EV_AVERAGE"
)

// Config holds the advantages feed endpoint and credentials.
type Config struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	APIHost        string        `yaml:"api_host"`
	AdvantageType  string        `yaml:"advantage_type"`
	Timeout        time.Duration `yaml:"timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}
