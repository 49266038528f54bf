package qdrant

import "github.com/hukumqa/hukumqa/internal/models"

// BuildFilter converts a metadata filter into the Qdrant filter form: a
// conjunction of exact matches. Nil when no constraint is set.
func BuildFilter(f *models.QueryFilter) map[string]interface{} {
	if f.IsZero() {
		return nil
	}

	var must []map[string]interface{}
	match := func(key, value string) {
		if value == "" {
			return
		}
		must = append(must, map[string]interface{}{
			"key":   key,
			"match": map[string]interface{}{"value": value},
		})
	}
	match("jenis_dokumen", f.JenisDokumen)
	match("nomor", f.Nomor)
	match("tahun", f.Tahun)
	match("pasal", f.Pasal)
	match("ayat", f.Ayat)

	return map[string]interface{}{"must": must}
}
