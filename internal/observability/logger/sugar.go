package logger

import (
	"go.uber.org/zap"
)

// S retorna el SugaredLogger del singleton.
// Lo usa la CLI para mensajes printf-style:
//
//	logger.S().Infof("%d accounts eligible", n)
func S() *zap.SugaredLogger {
	return L().Sugar()
}
