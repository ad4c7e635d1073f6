package declaration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

// Load reads every *.json declaration file under dir and returns the services
// keyed by id. The service id is the file name without extension.
func Load(dir string, logger logging.Logger) (map[string]Service, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read declarations dir %s: %w", dir, err)
	}

	services := make(map[string]Service)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read declaration %s: %w", path, err)
		}

		var svc Service
		if err := json.Unmarshal(raw, &svc); err != nil {
			return nil, fmt.Errorf("parse declaration %s: %w", path, err)
		}

		svc.ID = strings.TrimSuffix(entry.Name(), ".json")
		if svc.Name == "" {
			svc.Name = svc.ID
		}
		if len(svc.Documents) == 0 {
			logger.Warn("declaration has no documents, skipping",
				logging.Field{Key: "service", Value: svc.ID})
			continue
		}
		for docType, doc := range svc.Documents {
			if doc.Location == "" {
				return nil, fmt.Errorf("declaration %s: document %q has no fetch location", svc.ID, docType)
			}
		}

		services[svc.ID] = svc
	}

	logger.Info("loaded service declarations",
		logging.Field{Key: "dir", Value: dir},
		logging.Field{Key: "services", Value: len(services)})

	return services, nil
}
