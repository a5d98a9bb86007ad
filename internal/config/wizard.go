package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to treewatch! Let's point it at your search backend.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Backend address.
	backendPrompt := promptui.Prompt{
		Label:    "Backend websocket URL",
		Default:  cfg.BackendURL,
		Validate: func(s string) error { return checkURL("backend_url", s, "ws", "wss") },
	}
	backend, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	cfg.BackendURL = backend
	cfg.HTTPURL = httpURLFor(backend)

	httpPrompt := promptui.Prompt{
		Label:    "Backend HTTP URL (dataset and transcription calls)",
		Default:  cfg.HTTPURL,
		Validate: func(s string) error { return checkURL("http_url", s, "http", "https") },
	}
	if cfg.HTTPURL, err = httpPrompt.Run(); err != nil {
		return nil, fmt.Errorf("http url: %w", err)
	}

	// 2. Run mode.
	items := make([]string, len(modeChoices))
	for i, c := range modeChoices {
		items[i] = c.label()
	}
	modePrompt := promptui.Select{
		Label: "Select backend flavour",
		Items: items,
	}
	modeIdx, _, err := modePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("mode selection: %w", err)
	}
	cfg.Mode = modeChoices[modeIdx].mode

	// 3. Search limits.
	if cfg.MaxIterations, err = promptInt("Max iterations per run", cfg.MaxIterations); err != nil {
		return nil, fmt.Errorf("max iterations: %w", err)
	}
	if cfg.MaxDepth, err = promptInt("Max tree depth", cfg.MaxDepth); err != nil {
		return nil, fmt.Errorf("max depth: %w", err)
	}

	// 4. Inputs for ask runs.
	if cfg.Mode == ModeAsk {
		videoPrompt := promptui.Prompt{
			Label:   "Video ids to search (comma-separated, blank for all)",
			Default: "",
		}
		videos, err := videoPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("video ids: %w", err)
		}
		cfg.VideoIDs = splitAndTrim(videos)
	}

	// 5. Dashboard port.
	if cfg.Dashboard.Port, err = promptInt("Dashboard port", cfg.Dashboard.Port); err != nil {
		return nil, fmt.Errorf("dashboard port: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

type modeChoice struct {
	mode RunMode
	desc string
}

var modeChoices = []modeChoice{
	{ModeAsk, "question answering over transcripts"},
	{ModeDiscover, "rubric discovery over a dataset"},
}

func (c modeChoice) label() string {
	return fmt.Sprintf("%-8s (%s)", c.mode, c.desc)
}

func promptInt(label string, def int) (int, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(def),
		Validate: func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return errors.New("must be a number")
			}
			if n < 1 {
				return errors.New("must be at least 1")
			}
			return nil
		},
	}
	s, err := p.Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

// httpURLFor derives the HTTP base URL served next to a websocket
// endpoint: ws://host:8000/ws becomes http://host:8000.
func httpURLFor(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return wsURL
	}
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path, u.RawQuery = "", ""
	return u.String()
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
