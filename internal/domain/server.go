package domain

type ServerKind string

const (
	ServerBigBlueButton ServerKind = "bigbluebutton"
	ServerLiveKit       ServerKind = "livekit"
)

// Server is a remote conference backend rooms are hosted on.
type Server struct {
	ID        ServerID   `json:"id" mapstructure:"id"`
	Name      string     `json:"name" mapstructure:"name"`
	Kind      ServerKind `json:"kind" mapstructure:"kind"`
	URL       string     `json:"url" mapstructure:"url"`
	Secret    string     `json:"-" mapstructure:"secret"`
	Version   string     `json:"version,omitempty" mapstructure:"version"`
	APIKey    string     `json:"-" mapstructure:"api_key"`
	APISecret string     `json:"-" mapstructure:"api_secret"`
	ClientURL string     `json:"client_url,omitempty" mapstructure:"client_url"`
}
