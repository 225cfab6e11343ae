package settings

import (
	"encoding/json"
	"fmt"
)

// Sync-tier keys.
const (
	KeyLicenseKey      = "licenseKey"
	KeyGlobalSettings  = "globalSettings"
	KeyModes           = "modes"
	KeyGeneralPrompt   = "generalPrompt"
	KeyPersonas        = "personas"
	KeyActivePersonaID = "activePersonaId"
)

// Local-tier keys.
const (
	KeyReplyHistory      = "replyHistory"
	KeyCachedLicenseInfo = "cachedLicenseInfo"
)

// LegacyKeys were written by earlier versions and are removed on save.
var LegacyKeys = []string{"language", "toxicity", "length", "temperature"}

// DocumentKeys are the sync keys carried by an import/export document.
var DocumentKeys = []string{
	KeyLicenseKey,
	KeyGlobalSettings,
	KeyModes,
	KeyGeneralPrompt,
	KeyPersonas,
}

// Document is a settings import/export payload. Values are kept raw: an
// import overwrites whole keys without looking inside them.
type Document map[string]json.RawMessage

// ParseDocument decodes an import payload and keeps only known keys.
func ParseDocument(data []byte) (Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse settings document: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parse settings document: not an object")
	}

	doc := make(Document, len(DocumentKeys))
	for _, key := range DocumentKeys {
		if v, ok := raw[key]; ok {
			doc[key] = v
		}
	}
	return doc, nil
}

// Marshal encodes the document with stable indentation.
func (d Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
