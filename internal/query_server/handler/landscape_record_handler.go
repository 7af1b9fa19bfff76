package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Avi18971911/Reconstructor/internal/db/repository"
	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const TokenPathVariable = "token"

// LandscapeRecordsHandler creates a handler listing the records of one landscape.
// @Summary Get the landscape records of a landscape token.
// @Tags landscape
// @Produce json
// @Param token path string true "The landscape token"
// @Param from query int false "Earliest timestamp in epoch milliseconds, inclusive"
// @Param to query int false "Latest timestamp in epoch milliseconds, inclusive"
// @Success 200 {array} model.LandscapeRecord "Records ordered by timestamp"
// @Failure 400 {object} ErrorMessage "Invalid time window"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /landscapes/{token}/records [get]
func LandscapeRecordsHandler(
	reader repository.RecordReader,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mux.Vars(r)[TokenPathVariable]
		window, err := getTimeWindow(r)
		if err != nil {
			logger.Error("Error encountered when parsing time window", zap.Error(err))
			HttpError(w, "Invalid time window, from and to must be epoch milliseconds", http.StatusBadRequest, logger)
			return
		}

		records, err := reader.FindByToken(r.Context(), token, window)
		if err != nil {
			logger.Error("Error encountered when getting landscape records", zap.String("landscape_token", token), zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}
		if records == nil {
			records = []model.LandscapeRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
		}
	}
}

func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func getTimeWindow(r *http.Request) (repository.TimeWindow, error) {
	var window repository.TimeWindow
	from, err := getOptionalInt64(r, "from")
	if err != nil {
		return window, err
	}
	to, err := getOptionalInt64(r, "to")
	if err != nil {
		return window, err
	}
	window.From = from
	window.To = to
	return window, nil
}

func getOptionalInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
