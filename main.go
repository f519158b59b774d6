package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ferreirogomes/notinha/config"
	"github.com/ferreirogomes/notinha/handlers"
	"github.com/ferreirogomes/notinha/ledger_listener"
	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/services"
	"github.com/ferreirogomes/notinha/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Falha fatal ao carregar configuração: %v", err)
	}
	logger.Init(cfg.LogLevel)

	db, err := storage.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("Falha fatal ao conectar ao banco de dados e aplicar migrações: %v", err)
	}
	defer db.Close()

	stellarService, err := services.NewStellarIntegrationService(
		cfg.HorizonURL, cfg.SorobanRPCURL, cfg.NetworkPassphrase, cfg.InvoiceContractID, cfg.FeeSourceSecret,
	)
	if err != nil {
		logger.Log.Fatalf("Falha ao inicializar serviço Stellar: %v", err)
	}

	oracle := services.NewPriceOracleService(stellarService)
	invoiceService := services.NewInvoiceService(db, stellarService, oracle, cfg.GracePeriodDays, cfg.PriceDropRate)
	investmentService := services.NewInvestmentService(db, stellarService, oracle, cfg.InsuranceCutBps)
	orderService := services.NewOrderService(db, stellarService)
	settlementService := services.NewSettlementService(db, stellarService, oracle)
	insuranceService := services.NewInsuranceService(db, stellarService)
	userService := services.NewUserService(db, stellarService)

	invoiceHandler := handlers.NewInvoiceHandler(invoiceService)
	investmentHandler := handlers.NewInvestmentHandler(investmentService)
	orderHandler := handlers.NewOrderHandler(orderService)
	settlementHandler := handlers.NewSettlementHandler(settlementService)
	insuranceHandler := handlers.NewInsuranceHandler(insuranceService)
	userHandler := handlers.NewUserHandler(userService)
	auth := handlers.NewAuthMiddleware(cfg.JWTSecret, db)

	// Listener do ledger em goroutine separada
	listener := ledger_listener.NewLedgerListener(stellarService.Horizon, invoiceService, stellarService.FeeSourceAddress())
	go listener.StartListening(context.Background())
	logger.Log.Info("Listener do ledger iniciado.")

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.URLFormat)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", userHandler.CreateUser)
		r.Get("/{id}", userHandler.GetUserByID)
		r.With(auth.Handler).Post("/{id}/kyc", userHandler.SetKYC)
	})

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", invoiceHandler.ListInvoices)
		r.Get("/{id}", invoiceHandler.GetInvoice)
		r.Get("/{id}/quote", investmentHandler.Quote)
		r.Get("/{id}/settlement", settlementHandler.QuoteSettlement)
		r.Post("/{id}/check-status", invoiceHandler.CheckStatus)

		r.Group(func(r chi.Router) {
			r.Use(auth.Handler)
			r.Post("/", invoiceHandler.CreateInvoice)
			r.Put("/{id}/mint", invoiceHandler.ConfirmMint)
			r.Post("/{id}/approve", invoiceHandler.PrepareApprove)
			r.Put("/{id}/approve", invoiceHandler.ConfirmApprove)
			r.Post("/{id}/auction", invoiceHandler.PrepareStartAuction)
			r.Put("/{id}/auction", invoiceHandler.ConfirmStartAuction)
			r.Post("/{id}/invest", investmentHandler.PrepareInvest)
			r.Put("/{id}/invest", investmentHandler.ConfirmInvest)
			r.Post("/{id}/settle", settlementHandler.PrepareSettle)
			r.Put("/{id}/settle", settlementHandler.ConfirmSettle)
			r.Post("/{id}/dispute", invoiceHandler.RaiseDispute)
			r.Post("/{id}/dispute/resolve", invoiceHandler.ResolveDispute)
			r.Post("/{id}/revoke", invoiceHandler.Revoke)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", orderHandler.ListOrders)
		r.Get("/{id}", orderHandler.GetOrder)

		r.Group(func(r chi.Router) {
			r.Use(auth.Handler)
			r.Post("/", orderHandler.PrepareCreateOrder)
			r.Put("/", orderHandler.ConfirmCreateOrder)
			r.Post("/{id}/fill", orderHandler.PrepareFill)
			r.Put("/{id}/fill", orderHandler.ConfirmFill)
			r.Post("/{id}/cancel", orderHandler.Cancel)
		})
	})

	r.Route("/insurance", func(r chi.Router) {
		r.Get("/pool", insuranceHandler.PoolStatus)

		r.Group(func(r chi.Router) {
			r.Use(auth.Handler)
			r.Post("/claim", insuranceHandler.PrepareClaim)
			r.Put("/claim", insuranceHandler.ConfirmClaim)
			r.Get("/claims", insuranceHandler.ListClaims)
		})
	})

	r.With(auth.Handler).Get("/investments", investmentHandler.ListMine)
	r.With(auth.Handler).Get("/distributions", settlementHandler.ListMine)

	addr := ":" + cfg.Port
	logger.Log.Infof("Servidor backend rodando na porta %s...", addr)
	logger.Log.Fatal(http.ListenAndServe(addr, r))
}
