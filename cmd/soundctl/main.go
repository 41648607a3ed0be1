// Soundctl runs the sound classification pipeline offline.
//
// Usage:
//
//	soundctl [command] [flags]
//
// Commands:
//
//	classify   Classify one or more audio files
//	features   Print the MFCC feature vector of an audio file
//	predict    Score a precomputed feature vector
//	inspect    Describe the loaded model or label table
//
// Artifacts and ffmpeg are configured the same way as the API server, through
// .env, CONFIG_FILE and the process environment.
package main

import (
	"fmt"
	"os"

	"github.com/ewilliams-labs/soundwatch/cmd/soundctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
