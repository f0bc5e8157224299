// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

package contacts

import (
	"bytes"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Contact contains information about a contact.
type Contact struct {
	UUID        string `yaml:"uuid,omitempty"`
	Tel         string `yaml:"tel,omitempty"`
	Name        string `yaml:"name,omitempty"`
	ProfileKey  []byte `yaml:"profileKey,omitempty"`
	Color       string `yaml:"color,omitempty"`
	Blocked     bool   `yaml:"blocked,omitempty"`
	ExpireTimer uint32 `yaml:"expireTimer,omitempty"`
	Archived    bool   `yaml:"archived,omitempty"`
}

// ID is the key a contact is stored under: its UUID, or its phone number
// for contacts without one.
func (c *Contact) ID() string {
	if c.UUID != "" && c.UUID != "0" {
		return c.UUID
	}
	return c.Tel
}

func (c *Contact) equal(o *Contact) bool {
	return c.UUID == o.UUID && c.Tel == o.Tel && c.Name == o.Name &&
		bytes.Equal(c.ProfileKey, o.ProfileKey) && c.Color == o.Color &&
		c.Blocked == o.Blocked && c.ExpireTimer == o.ExpireTimer && c.Archived == o.Archived
}

// merge overlays the non-empty fields of remote onto c.
func (c *Contact) merge(remote *Contact) {
	if remote.UUID != "" {
		c.UUID = remote.UUID
	}
	if remote.Tel != "" {
		c.Tel = remote.Tel
	}
	if remote.Name != "" {
		c.Name = remote.Name
	}
	if len(remote.ProfileKey) > 0 {
		c.ProfileKey = remote.ProfileKey
	}
	if remote.Color != "" {
		c.Color = remote.Color
	}
	c.Blocked = remote.Blocked
	c.ExpireTimer = remote.ExpireTimer
	c.Archived = remote.Archived
}

// Merge folds the remote contact list into the local one and returns the
// contacts that were added or changed, ordered by ID.
func Merge(local, remote []Contact) []Contact {
	byID := make(map[string]Contact, len(local))
	for _, c := range local {
		byID[c.ID()] = c
	}
	changed := map[string]Contact{}
	for i := range remote {
		r := &remote[i]
		id := r.ID()
		if id == "" {
			continue
		}
		old, ok := byID[id]
		next := old
		next.merge(r)
		if ok && old.equal(&next) {
			continue
		}
		byID[id] = next
		changed[id] = next
	}
	out := make([]Contact, 0, len(changed))
	for _, c := range changed {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

type yamlContacts struct {
	Contacts []Contact
}

// ReadContacts loads the contacts yaml file and pareses it
func ReadContacts(fileName string) ([]Contact, error) {
	log.Debug("[siglink] read contacts from ", fileName)
	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	contactsYaml := &yamlContacts{}
	err = yaml.Unmarshal(b, contactsYaml)
	if err != nil {
		return nil, err
	}
	return contactsYaml.Contacts, nil
}

// WriteContacts saves a list of contacts to a file
func WriteContacts(filename string, contacts []Contact) error {
	log.Debug("[siglink] write contacts ", len(contacts))

	c := &yamlContacts{contacts}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, 0600)
}
