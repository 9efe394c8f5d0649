package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	Host               string        `env:"HOST,default=0.0.0.0" validate:"required"`
	Port               int           `env:"PORT,default=6667" validate:"gte=1,lte=65535"`
	LogLevel           string        `env:"LOG_LEVEL,default=INFO" validate:"required"`
	OutboundBufferSize int           `env:"OUTBOUND_BUFFER_SIZE,default=64" validate:"gt=0"`
	HistoryBufferSize  int           `env:"HISTORY_BUFFER_SIZE,default=256" validate:"gt=0"`
	HistoryLimit       int           `env:"HISTORY_LIMIT,default=50" validate:"gte=0"`
	BadgerFilepath     string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	StatsInterval      time.Duration `env:"STATS_INTERVAL,default=30s" validate:"gt=0"`
	CensoredWords      string        `env:"CENSORED_WORDS"`
	CharReplacement    string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

// CensoredWordList splits the comma-separated dictionary, dropping
// blanks so a trailing comma doesn't poison the automaton.
func (c Config) CensoredWordList() []string {
	return lo.FilterMap(strings.Split(c.CensoredWords, ","), func(word string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(word)
		return trimmed, trimmed != ""
	})
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
