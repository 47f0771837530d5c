package config

type BotConfig struct {
	ServerURL   string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	WSURL       string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	PlayerID    string `env:"PLAYER_ID" envDefault:"bot"`
	DisplayName string `env:"DISPLAY_NAME" envDefault:"Bot"`
	Mode        string `env:"GAME_MODE" envDefault:"classic"`
	Capacity    int    `env:"GAME_CAPACITY" envDefault:"2"`
}

func LoadBot() (BotConfig, error) { return load[BotConfig]() }
