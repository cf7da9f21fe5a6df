// Vitacheck analyzes drug and supplement combinations for interactions.
//
// It fans requests out to public medical datasets (identifier resolution,
// interaction knowledge bases, product labels, adverse event reports) plus
// optional credentialed services, merges the evidence per origin, and scores
// a consensus severity with a confidence value.
//
// Usage:
//
//	# Start the server with default configuration
//	vitacheck run
//
//	# Start with a custom configuration file
//	vitacheck run --config /etc/vitacheck/config.yaml
//
//	# Show version information
//	vitacheck version
package main

func main() {
	Execute()
}
