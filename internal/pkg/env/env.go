package env

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// DefaultLocations are searched in order when no explicit file is given.
var DefaultLocations = []string{
	".env",
	"../../.env",
	"../../../.env",
}

// SetupEnvFile exports the first readable env file into the process
// environment. Variables already set in the environment win. It returns the
// file that was loaded, or an empty string when none was found.
func SetupEnvFile(locations ...string) string {
	if len(locations) == 0 {
		locations = DefaultLocations
	}

	for _, file := range locations {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			log.Printf("[Env] Could not load %s: %v", file, err)
			continue
		}
		return file
	}

	log.Print("[Env] No .env file found, using process environment only")
	return ""
}
