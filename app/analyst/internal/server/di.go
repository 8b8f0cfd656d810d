package server

import (
	"github.com/google/wire"

	"github.com/iWorld-y/match_radar/app/analyst/internal/data"
	"github.com/iWorld-y/match_radar/app/analyst/internal/service"
	"github.com/iWorld-y/match_radar/app/analyst/internal/usecase"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/metrics"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/pipeline"
)

// ProviderSet 是分析服务的依赖注入 Provider 集合
var ProviderSet = wire.NewSet(
	// Server providers
	NewHTTPServer,

	// Data providers
	data.NewData,
	data.NewUserRepo,
	data.NewAnalysisRepo,
	data.NewStatsGateway,

	// Engine providers
	metrics.New,
	NewPromptSet,
	NewCompleter,
	NewNewsRetriever,
	NewRadarEngine,
	NewMemoryStore,
	NewLocker,
	NewPublisher,
	NewSessions,
	NewResponder,
	wire.Bind(new(usecase.Analyzer), new(*pipeline.Engine)),

	// UseCase providers
	usecase.NewUserUseCase,
	usecase.NewAnalysisUseCase,
	usecase.NewChatUseCase,

	// Service providers
	service.NewAnalystService,
)
