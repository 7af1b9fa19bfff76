package bootstrapper

const LandscapeRecordIndexName = "landscape_records"

func landscapeRecordIndex() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"landscape_token": map[string]interface{}{
					"type": "keyword",
				},
				"timestamp": map[string]interface{}{
					"type":   "date",
					"format": "epoch_millis",
				},
				"node": map[string]interface{}{
					"properties": map[string]interface{}{
						"host_name":  map[string]interface{}{"type": "keyword"},
						"ip_address": map[string]interface{}{"type": "keyword"},
					},
				},
				"application": map[string]interface{}{
					"properties": map[string]interface{}{
						"name":     map[string]interface{}{"type": "keyword"},
						"pid":      map[string]interface{}{"type": "long"},
						"language": map[string]interface{}{"type": "keyword"},
					},
				},
				"package": map[string]interface{}{
					"type": "keyword",
				},
				"class": map[string]interface{}{
					"type": "keyword",
				},
				"method": map[string]interface{}{
					"type": "keyword",
				},
			},
		},
	}
}
