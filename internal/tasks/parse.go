package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/shared"
)

type object map[string]json.RawMessage

// ParseBackup reads and validates a backup document.
//
// It returns [shared.ErrFormat] when the top-level lists array is missing or malformed,
// when an id is not an integer, or when a required field is missing. Ids are read only
// to check them. item_status accepts a boolean or the strings "true" and "false".
// Missing, null or empty notes and custom fields are all read as absent.
func ParseBackup(r io.Reader) (*models.BackupDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	var top object
	if err := decode(data, &top); err != nil || top == nil {
		return nil, formatErr("document", "not a JSON object")
	}

	doc := &models.BackupDocument{Lists: []models.BackupList{}}

	if raw, ok := present(top, "exportDate"); ok {
		if doc.ExportDate, err = parseInt(raw); err != nil {
			return nil, formatErr("exportDate", err.Error())
		}
	}
	if raw, ok := present(top, "appVersion"); ok {
		if doc.AppVersion, err = parseString(raw); err != nil {
			return nil, formatErr("appVersion", err.Error())
		}
	}

	rawLists, ok := present(top, "lists")
	if !ok {
		return nil, formatErr("lists", "missing")
	}
	var lists []json.RawMessage
	if err := decode(rawLists, &lists); err != nil {
		return nil, formatErr("lists", "not an array")
	}

	for i, rawList := range lists {
		list, err := parseList(fmt.Sprintf("lists[%d]", i), rawList)
		if err != nil {
			return nil, err
		}
		doc.Lists = append(doc.Lists, list)
	}
	return doc, nil
}

func parseList(path string, raw json.RawMessage) (models.BackupList, error) {
	var obj object
	if err := decode(raw, &obj); err != nil || obj == nil {
		return models.BackupList{}, formatErr(path, "not an object")
	}

	var (
		list models.BackupList
		err  error
	)
	if v, ok := present(obj, "list_id"); ok {
		if list.ListID, err = parseInt(v); err != nil {
			return list, formatErr(path+".list_id", err.Error())
		}
	}
	if list.ListName, err = requiredString(obj, "list_name"); err != nil {
		return list, formatErr(path+".list_name", err.Error())
	}
	if list.ListName == "" {
		return list, formatErr(path+".list_name", "empty")
	}
	if list.Category, err = requiredString(obj, "list_category_type"); err != nil {
		return list, formatErr(path+".list_category_type", err.Error())
	}
	if list.CreationDate, err = requiredInt(obj, "creation_date"); err != nil {
		return list, formatErr(path+".creation_date", err.Error())
	}

	list.Items = []models.BackupItem{}
	rawItems, ok := present(obj, "items")
	if !ok {
		return list, nil
	}
	var items []json.RawMessage
	if err := decode(rawItems, &items); err != nil {
		return list, formatErr(path+".items", "not an array")
	}
	for j, rawItem := range items {
		item, err := parseItem(fmt.Sprintf("%s.items[%d]", path, j), rawItem)
		if err != nil {
			return list, err
		}
		list.Items = append(list.Items, item)
	}
	return list, nil
}

func parseItem(path string, raw json.RawMessage) (models.BackupItem, error) {
	var obj object
	if err := decode(raw, &obj); err != nil || obj == nil {
		return models.BackupItem{}, formatErr(path, "not an object")
	}

	var (
		item models.BackupItem
		err  error
	)
	if v, ok := present(obj, "item_id"); ok {
		if item.ItemID, err = parseInt(v); err != nil {
			return item, formatErr(path+".item_id", err.Error())
		}
	}
	if item.Title, err = requiredString(obj, "item_title"); err != nil {
		return item, formatErr(path+".item_title", err.Error())
	}
	if item.Title == "" {
		return item, formatErr(path+".item_title", "empty")
	}
	if item.Notes, err = optionalString(obj, "item_notes"); err != nil {
		return item, formatErr(path+".item_notes", err.Error())
	}
	v, ok := present(obj, "item_status")
	if !ok {
		return item, formatErr(path+".item_status", "missing")
	}
	if item.Status, err = parseBool(v); err != nil {
		return item, formatErr(path+".item_status", err.Error())
	}
	if item.CreationDate, err = requiredInt(obj, "creation_date"); err != nil {
		return item, formatErr(path+".creation_date", err.Error())
	}
	if item.CustomFields, err = optionalString(obj, "custom_fields"); err != nil {
		return item, formatErr(path+".custom_fields", err.Error())
	}
	return item, nil
}

func formatErr(path, reason string) error {
	return fmt.Errorf("%w: %s: %s", shared.ErrFormat, path, reason)
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// present returns the raw value of key unless it is missing or null.
func present(obj object, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return nil, false
	}
	return raw, true
}

func requiredString(obj object, key string) (string, error) {
	raw, ok := present(obj, key)
	if !ok {
		return "", fmt.Errorf("missing")
	}
	return parseString(raw)
}

func optionalString(obj object, key string) (string, error) {
	raw, ok := present(obj, key)
	if !ok {
		return "", nil
	}
	return parseString(raw)
}

func requiredInt(obj object, key string) (int64, error) {
	raw, ok := present(obj, key)
	if !ok {
		return 0, fmt.Errorf("missing")
	}
	return parseInt(raw)
}

func parseString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("not a string")
	}
	return s, nil
}

// parseInt accepts an integral JSON number or a string holding one.
func parseInt(raw json.RawMessage) (int64, error) {
	var v any
	if err := decode(raw, &v); err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return 0, fmt.Errorf("not an integer")
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", text)
	}
	return n, nil
}

// parseBool accepts a JSON boolean or the strings "true" and "false".
func parseBool(raw json.RawMessage) (bool, error) {
	var v any
	if err := decode(raw, &v); err != nil {
		return false, fmt.Errorf("not a boolean")
	}

	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("not a boolean")
}
