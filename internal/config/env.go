package config

import "os"

// RequiredEnv lists the variables that must be set before any session starts.
var RequiredEnv = []string{
	"LIVEKIT_URL",
	"LIVEKIT_API_KEY",
	"LIVEKIT_API_SECRET",
	"DEEPGRAM_API_KEY",
	"ELEVENLABS_API_KEY",
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ValidateEnv checks every variable in RequiredEnv. Unset and empty values are
// both missing. All missing names are reported, in RequiredEnv order.
func ValidateEnv(lookup LookupFunc) error {
	var missing []string
	for _, key := range RequiredEnv {
		if v, ok := lookup(key); !ok || v == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return &ConfigurationError{Kind: KindMissingEnv, Missing: missing}
	}
	return nil
}

// ValidateEnvironment runs ValidateEnv against the process environment.
func ValidateEnvironment() error {
	return ValidateEnv(os.LookupEnv)
}
