package main

import (
	"flag"
	"log"

	"github.com/danmuck/pdcpmux/internal/config"
)

func defaultPath(kind string) string {
	switch kind {
	case "profile":
		return "cmd/pdcpctl/profile.toml"
	case "service":
		return "cmd/pdcpctl/config.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}

func main() {
	kind := flag.String("kind", "profile", "config kind: profile|service")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing bearer profile")
	input := flag.String("input", "", "profile path for validation (defaults to cmd/pdcpctl/profile.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if *kind != "profile" {
			log.Fatalf("validation supports kind=profile only, got %s", *kind)
		}
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		if _, err := config.LoadProfile(path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated profile at %s", path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s template to %s", *kind, target)
}
