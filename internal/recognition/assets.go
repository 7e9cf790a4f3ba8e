package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/logger"
)

// ModelInfo describes the loaded model bundle.
type ModelInfo struct {
	ScriptURLs    []string `json:"scriptUrls"`
	CheckpointURL string   `json:"checkpointUrl"`
	MetadataURL   string   `json:"metadataUrl"`
	ModelName     string   `json:"modelName,omitempty"`
	Labels        []string `json:"labels"`
}

// metadata is the subset of the model's metadata.json we read.
type metadata struct {
	WordLabels                []string `json:"wordLabels"`
	ModelName                 string   `json:"modelName"`
	TFJSSpeechCommandsVersion string   `json:"tfjsSpeechCommandsVersion"`
}

// AssetLoader fetches the engine scripts and model metadata. A successful
// load is memoized and shared by every session; failures are not.
type AssetLoader struct {
	tfjsURL           string
	speechCommandsURL string
	modelURL          string
	httpClient        *http.Client
	logger            logger.Logger

	mu     sync.Mutex
	loaded *ModelInfo
}

func NewAssetLoader(tfjsURL, speechCommandsURL, modelURL string, timeout time.Duration, log logger.Logger) *AssetLoader {
	return &AssetLoader{
		tfjsURL:           tfjsURL,
		speechCommandsURL: speechCommandsURL,
		modelURL:          strings.TrimSuffix(modelURL, "/") + "/",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.With(map[string]interface{}{"component": "model-assets"}),
	}
}

// Load fetches the tfjs bundle, then the speech-commands bundle (which
// needs tfjs), then the model metadata. Steps never overlap.
func (a *AssetLoader) Load(ctx context.Context) (ModelInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loaded != nil {
		return *a.loaded, nil
	}

	for _, script := range []string{a.tfjsURL, a.speechCommandsURL} {
		if err := a.fetchScript(ctx, script); err != nil {
			a.logger.Error("script bundle failed to load", map[string]interface{}{
				"url":   script,
				"error": err.Error(),
			})
			return ModelInfo{}, apperrors.NewLoadFailedError(script, err)
		}
	}

	info := ModelInfo{
		ScriptURLs:    []string{a.tfjsURL, a.speechCommandsURL},
		CheckpointURL: a.modelURL + "model.json",
		MetadataURL:   a.modelURL + "metadata.json",
	}

	meta, err := a.fetchMetadata(ctx, info.MetadataURL)
	if err != nil {
		a.logger.Error("model metadata failed to load", map[string]interface{}{
			"url":   info.MetadataURL,
			"error": err.Error(),
		})
		return ModelInfo{}, apperrors.NewLoadFailedError(info.MetadataURL, err)
	}
	info.Labels = meta.WordLabels
	info.ModelName = meta.ModelName

	a.logger.Info("model loaded", map[string]interface{}{
		"model":  info.ModelName,
		"labels": len(info.Labels),
	})

	a.loaded = &info
	return info, nil
}

// Loaded returns the memoized model info, if a load has succeeded.
func (a *AssetLoader) Loaded() (ModelInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded == nil {
		return ModelInfo{}, false
	}
	return *a.loaded, true
}

func (a *AssetLoader) fetchScript(ctx context.Context, url string) error {
	resp, err := a.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}

func (a *AssetLoader) fetchMetadata(ctx context.Context, url string) (*metadata, error) {
	resp, err := a.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var meta metadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if len(meta.WordLabels) == 0 {
		return nil, fmt.Errorf("metadata has no word labels")
	}
	return &meta, nil
}

func (a *AssetLoader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return resp, nil
}
