package router

import (
	"net/http"

	"github.com/Avi18971911/Reconstructor/internal/db/repository"
	"github.com/Avi18971911/Reconstructor/internal/query_server/handler"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func CreateRouter(
	reader repository.RecordReader,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.Handle(
		"/landscapes/{"+handler.TokenPathVariable+"}/records", handler.LandscapeRecordsHandler(
			reader,
			logger,
		),
	).Methods("GET")

	r.Handle("/healthz", handler.HealthHandler()).Methods("GET")

	return r
}
