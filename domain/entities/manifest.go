package entities

import "encoding/json"

// CommandManifest describes one registered command.
type CommandManifest struct {
	ArgSchema    json.RawMessage `json:"arg_schema,omitempty"`
	ResultSchema json.RawMessage `json:"result_schema,omitempty"`
	PackageID    string          `json:"package_id"`
	CommandID    string          `json:"command_id"`
	Description  string          `json:"description,omitempty"`
}

// RuntimeManifest lists every registered command, ordered by key.
type RuntimeManifest struct {
	Version    string            `json:"version"`
	Commands   []CommandManifest `json:"commands"`
	Algorithms []string          `json:"algorithms"`
}
