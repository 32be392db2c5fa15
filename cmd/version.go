package cmd

import (
	"fmt"
	"os"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

func runVersion() {
	fmt.Printf("cdd-docs %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	// Check API Key from environment (don't display full content)
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if len(geminiKey) >= 8 {
		fmt.Printf("GEMINI_API_KEY: %s...%s (configured)\n",
			geminiKey[:4],
			geminiKey[len(geminiKey)-4:])
	} else if geminiKey != "" {
		fmt.Println("GEMINI_API_KEY: configured")
	} else {
		fmt.Println("GEMINI_API_KEY: Not set")
		fmt.Println()
		fmt.Println("Hint: Please set GEMINI_API_KEY environment variable")
		fmt.Println("  export GEMINI_API_KEY=your-api-key")
	}
}
