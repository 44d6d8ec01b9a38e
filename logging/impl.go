package logging

import (
	"fmt"

	"go.uber.org/zap"
)

type impl struct {
	*zap.SugaredLogger
	name  string
	level zap.AtomicLevel
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{
		SugaredLogger: imp.SugaredLogger.Named(subname),
		name:          newName,
		level:         imp.level,
	}
}

func (imp *impl) WithFields(keysAndValues ...interface{}) Logger {
	return &impl{
		SugaredLogger: imp.SugaredLogger.With(keysAndValues...),
		name:          imp.name,
		level:         imp.level,
	}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	return LevelFromZap(imp.level.Level())
}
