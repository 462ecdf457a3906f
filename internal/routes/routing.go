package routes

import (
	"github.com/labstack/echo/v4"

	"repair-crm/internal/controllers"
)

func runRoutingRouter(api *echo.Group, routingCtrl *controllers.RoutingController) {
	api.POST("/routing/move", routingCtrl.MoveInstrumentGroup)
	api.POST("/service-files/:id/dispatch", routingCtrl.DispatchToDepartments)
	api.POST("/routing/stage/:action", routingCtrl.ChangeStage)
}

func runBillingRouter(api *echo.Group, billingCtrl *controllers.BillingController) {
	api.GET("/billing/service-files/:id", billingCtrl.ServiceFileBilling)
	api.GET("/billing/leads/:id", billingCtrl.LeadBilling)
}

func runCatalogRouter(api *echo.Group, catalogCtrl *controllers.CatalogController) {
	api.GET("/catalog", catalogCtrl.GetCatalog)
	api.POST("/catalog/refresh", catalogCtrl.Refresh)
}

func runBoardRouter(api *echo.Group, boardCtrl *controllers.BoardController) {
	api.GET("/board/:id", boardCtrl.Snapshot)
	api.POST("/board/:id/events", boardCtrl.ApplyEvents)
}
