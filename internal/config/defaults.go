package config

// Default returns the baseline configuration applied before a config
// file is parsed over it.
func Default() Config {
	return Config{
		TMDB: TMDB{
			BaseURL:  "https://api.themoviedb.org/3",
			Language: "en-US",
		},
		TVDB: TVDB{
			BaseURL: "https://api4.thetvdb.com/v4",
		},
		OMDb: OMDb{
			BaseURL: "https://www.omdbapi.com",
		},
		TVMaze: TVMaze{
			BaseURL: "https://api.tvmaze.com",
		},
		MusicBrainz: MusicBrainz{
			BaseURL:   "https://musicbrainz.org/ws/2",
			UserAgent: "namegnome/1.0 (https://github.com/namegnome/namegnome)",
		},
		TheAudioDB: TheAudioDB{
			BaseURL: "https://www.theaudiodb.com/api/v1/json",
		},
		LLM: LLM{
			BaseURL:        "https://openrouter.ai/api/v1/chat/completions",
			Model:          "deepseek/deepseek-chat-v3.1",
			TimeoutSeconds: 120,
		},
		Cache: Cache{
			Path:              "~/.cache/namegnome/providers.db",
			DefaultTTLSeconds: 3600,
		},
		Apply: Apply{
			OnCollision: "backup",
			Mode:        "transactional",
		},
		Logging: Logging{
			Format:      "console",
			Level:       "info",
			OutputPaths: []string{"stderr"},
		},
	}
}
