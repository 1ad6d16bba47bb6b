package handler

import (
	"bitcollab/internal/app/collab"
	"bitcollab/internal/app/room"
	"bitcollab/internal/configs"
)

// AppDeps bundles the shared dependencies handed to every handler.
type AppDeps struct {
	Coordinator *collab.Coordinator
	Store       room.Store
	Config      *configs.AppConfig
}
