package addresslookup

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gasbutano/checkoutbackend/lib/mycontext"
	"github.com/gasbutano/checkoutbackend/lib/myhttp"
	"github.com/gasbutano/checkoutbackend/lib/mylog"
)

type webService struct {
	logger   mylog.Logger
	lookuper Lookuper
}

// Use dependency injection to isolate the infrastructure and ease testing
func NewService(lookuper Lookuper) *webService {
	return &webService{
		logger:   mylog.New("addresslookup"),
		lookuper: lookuper,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/api/address/{cep}", s.lookupAddressPage()).Methods("GET")
}

func (s *webService) lookupAddressPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		responseWriter := myhttp.NewWriter(s.logger)

		cep := mux.Vars(r)["cep"]

		address, err := s.lookuper.Lookup(c, cep)
		if err != nil {
			responseWriter.WriteError(c, w, 1, err)
			return
		}

		responseWriter.Write(c, w, http.StatusOK, address)
	}
}
