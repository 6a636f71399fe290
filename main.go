package main

import (
	"os"

	"stayza-server/routes"
	"stayza-server/services"
	"stayza-server/storage"
	"stayza-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	storage.InitializeDB()
	storage.InitializeRedis()

	services.Gateway = services.NewPaystackClient()

	app := iris.New()
	app.Validator = validator.New()

	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Get("/notifications", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUserNotifications)
		user.Patch("/notifications/{id:uint}/read", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.MarkNotificationRead)
	}

	property := app.Party("/api/property")
	{
		property.Post("/", accessTokenVerifierMiddleware, utils.RealtorOnlyMiddleware, routes.CreateProperty)
		property.Get("/{id:uint}", routes.GetProperty)
		property.Patch("/{id:uint}/ratecard", accessTokenVerifierMiddleware, utils.RealtorOnlyMiddleware, routes.UpdateRateCard)
		property.Get("/mine/list", accessTokenVerifierMiddleware, utils.RealtorOnlyMiddleware, routes.GetRealtorProperties)
		property.Post("/{id:uint}/validate", routes.ValidateBookingAvailability)
	}

	booking := app.Party("/api/booking")
	{
		booking.Post("/quote", routes.GetQuote)
		booking.Post("/", accessTokenVerifierMiddleware, routes.CreateBooking)
		booking.Get("/{id:uint}", accessTokenVerifierMiddleware, routes.GetBooking)
		booking.Delete("/{id:uint}", accessTokenVerifierMiddleware, routes.CancelBooking)
		booking.Get("/mine/list", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUserBookings)
		booking.Get("/realtor/list", accessTokenVerifierMiddleware, utils.RealtorOnlyMiddleware, routes.GetRealtorBookings)
	}

	payment := app.Party("/api/payment")
	{
		payment.Post("/booking/{id:uint}/initialize", accessTokenVerifierMiddleware, routes.InitializePayment)
		payment.Post("/verify/{reference}", accessTokenVerifierMiddleware, routes.VerifyPayment)
		payment.Post("/webhook", routes.PaymentWebhook)
	}

	refund := app.Party("/api/refund")
	{
		refund.Post("/booking/{id:uint}", accessTokenVerifierMiddleware, routes.ApplyRefund)
		refund.Get("/booking/{id:uint}", accessTokenVerifierMiddleware, routes.GetRefundSummary)
	}

	dispute := app.Party("/api/dispute")
	{
		dispute.Post("/", accessTokenVerifierMiddleware, routes.OpenDispute)
		dispute.Get("/{id:uint}", accessTokenVerifierMiddleware, routes.GetDispute)
		dispute.Post("/{id:uint}/close", accessTokenVerifierMiddleware, routes.CloseDispute)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/bookings", routes.AdminListBookings)
		admin.Patch("/properties/{id:uint}/status", routes.AdminUpdatePropertyStatus)
		admin.Get("/disputes", routes.AdminListDisputes)
		admin.Post("/disputes/{id:uint}/review", routes.AdminBeginReview)
		admin.Post("/disputes/{id:uint}/resolve", routes.AdminResolveDispute)
		admin.Post("/sweeps/complete-bookings", routes.AdminCompleteElapsedBookings)
		admin.Post("/sweeps/expire-payments", routes.AdminExpireStalePayments)
		admin.Get("/audit", routes.AdminListAuditLog)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	app.Listen(":" + port)
}
