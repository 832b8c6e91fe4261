// Package discord contains the Discord message model, the limits Discord
// imposes on embeds and a client to deliver messages to a channel.
package discord

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/simplesurance/pushcord/internal/stringutils"
)

// Limits of a single embed, see
// https://discord.com/developers/docs/resources/message#embed-object-embed-limits
const (
	MaxTitleLen       = 256
	MaxDescriptionLen = 4096
	MaxFields         = 25
	MaxFieldNameLen   = 256
	MaxFieldValueLen  = 1024
	MaxFooterLen      = 2048
	MaxAuthorNameLen  = 256
	// MaxEmbedSize is the upper bound of the serialized size of an embed,
	// in bytes, as computed by SerializedSize.
	MaxEmbedSize = 6000
)

// emptyValue is sent instead of empty field names and values, Discord
// rejects embeds with empty ones.
const emptyValue = "\u200b"

type Message struct {
	Embeds []*Embed `json:"embeds"`
}

type Embed struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Color       int        `json:"color,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Author      *Author    `json:"author,omitempty"`
	Footer      *Footer    `json:"footer,omitempty"`
	Thumbnail   *Image     `json:"thumbnail,omitempty"`
	Fields      []*Field   `json:"fields,omitempty"`
}

type Author struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type Footer struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type Image struct {
	URL string `json:"url"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// AddField appends a field to the embed.
func (e *Embed) AddField(name, value string, inline bool) {
	e.Fields = append(e.Fields, &Field{Name: name, Value: value, Inline: inline})
}

// SerializedSize returns the length in bytes of the JSON encoding of v.
// It is the single measure used to check embeds and groups of fields
// against the size thresholds.
// Values that can not be encoded have a size of 0.
func SerializedSize(v any) int {
	buf, err := json.Marshal(v)
	if err != nil {
		return 0
	}

	return len(buf)
}

// Clamp modifies e so that it complies with the Discord embed limits.
// Texts that are too long are ellipsized, fields exceeding MaxFields are
// removed from the end. When the serialized embed is still bigger than
// MaxEmbedSize, fields are removed from the end and as last resort the
// description is shortened.
func Clamp(e *Embed) {
	e.Title = stringutils.Ellipsize(e.Title, MaxTitleLen)
	e.Description = stringutils.Ellipsize(e.Description, MaxDescriptionLen)

	if e.Author != nil {
		e.Author.Name = stringutils.Ellipsize(e.Author.Name, MaxAuthorNameLen)
	}

	if e.Footer != nil {
		e.Footer.Text = stringutils.Ellipsize(e.Footer.Text, MaxFooterLen)
	}

	if len(e.Fields) > MaxFields {
		e.Fields = e.Fields[:MaxFields]
	}

	for _, f := range e.Fields {
		f.Name = stringutils.Ellipsize(f.Name, MaxFieldNameLen)
		if f.Name == "" {
			f.Name = emptyValue
		}

		f.Value = stringutils.Ellipsize(f.Value, MaxFieldValueLen)
		if f.Value == "" {
			f.Value = emptyValue
		}
	}

	for len(e.Fields) > 0 && SerializedSize(e) >= MaxEmbedSize {
		e.Fields = e.Fields[:len(e.Fields)-1]
	}

	for e.Description != "" && SerializedSize(e) >= MaxEmbedSize {
		over := SerializedSize(e) - MaxEmbedSize + 1
		e.Description = stringutils.Ellipsize(
			e.Description,
			utf8.RuneCountInString(e.Description)-over,
		)
	}
}
