package entities

import "fmt"

// CommandKey identifies a registered command by package and command id.
type CommandKey struct {
	PackageID string `json:"package_id"`
	CommandID string `json:"command_id"`
}

// NewCommandKey builds a CommandKey.
func NewCommandKey(pkg, cmd string) CommandKey {
	return CommandKey{PackageID: pkg, CommandID: cmd}
}

// String renders the key as "package/command".
func (k CommandKey) String() string {
	return fmt.Sprintf("%s/%s", k.PackageID, k.CommandID)
}

// Less orders keys by package id, then command id.
func (k CommandKey) Less(other CommandKey) bool {
	if k.PackageID != other.PackageID {
		return k.PackageID < other.PackageID
	}
	return k.CommandID < other.CommandID
}
