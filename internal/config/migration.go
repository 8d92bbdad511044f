package config

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
)

// legacySettings holds key spellings accepted by earlier releases.
type legacySettings struct {
	BaudRate int    `json:"baudrate"`
	ModelID  string `json:"model_id"`
}

// migrateSettings folds legacy keys into s and repairs values that older
// files may carry.
func migrateSettings(data []byte, s *Settings) {
	var legacy legacySettings
	if err := json.Unmarshal(data, &legacy); err == nil {
		if legacy.BaudRate != 0 && s.BaudRate == hardware.DefaultBaudRate {
			s.BaudRate = legacy.BaudRate
		}
		if legacy.ModelID != "" {
			s.Model = hardware.ModelID(legacy.ModelID)
		}
	}

	// "MP-60" and "MP60" both name the mp60 profile.
	if m := hardware.ModelID(strings.ToLower(strings.ReplaceAll(string(s.Model), "-", ""))); m != s.Model {
		slog.Info("config: normalised model id", "from", s.Model, "to", m)
		s.Model = m
	}
	if _, err := hardware.LookupProfile(s.Model); err != nil {
		slog.Warn("config: unknown model, using default", "model", s.Model, "default", DefaultModel)
		s.Model = DefaultModel
	}

	def := DefaultSettings()
	if s.URL == "" {
		s.URL = def.URL
	}
	if s.Verbosity < 0 || s.Verbosity > 2 {
		slog.Warn("config: invalid verbosity, fixing", "verbosity", s.Verbosity)
		s.Verbosity = def.Verbosity
	}
	if s.Timeout <= 0 {
		s.Timeout = def.Timeout
	}
	if s.PollInterval < 0 {
		s.PollInterval = def.PollInterval
	}
	if s.ReconnectWait <= 0 {
		s.ReconnectWait = def.ReconnectWait
	}
	if s.HTTPAddr == "" {
		s.HTTPAddr = def.HTTPAddr
	}
}
