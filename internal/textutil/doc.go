// Package textutil provides filename sanitization and human-readable
// formatting shared by the download, delivery and CLI layers.
//
// SanitizeTitle turns an arbitrary media title into a single safe path
// segment: unsafe characters are dropped, the result is NFC normalized and
// capped at MaxTitleRunes runes.
package textutil
