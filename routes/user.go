package routes

import (
	"stayza-server/models"
	"stayza-server/storage"
	"stayza-server/utils"

	"github.com/kataras/iris/v12"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterUserInput struct {
	FirstName string `json:"firstName" validate:"required,max=256"`
	LastName  string `json:"lastName" validate:"required,max=256"`
	Email     string `json:"email" validate:"required,max=256,email"`
	Password  string `json:"password" validate:"required,min=8,max=256"`
	Role      string `json:"role" validate:"omitempty,oneof=guest realtor"`
}

func Register(ctx iris.Context) {
	var input RegisterUserInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existing models.User
	res := storage.DB.Where("email = ?", input.Email).First(&existing)
	if res.Error == nil {
		utils.CreateError(iris.StatusConflict, "Conflict", "Email already registered", ctx)
		return
	} else if res.Error != gorm.ErrRecordNotFound {
		utils.CreateInternalServerError(ctx)
		return
	}

	hashedPassword, hashErr := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if hashErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	role := input.Role
	if role == "" {
		role = "guest"
	}

	user := models.User{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Password:  string(hashedPassword),
		Role:      role,
	}
	if err := storage.DB.Create(&user).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	token, tokenErr := utils.CreateAccessToken(user.ID, user.Role)
	if tokenErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"user": user, "accessToken": token})
}

type LoginUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Login(ctx iris.Context) {
	var input LoginUserInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Invalid email or password", ctx)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Invalid email or password", ctx)
		return
	}

	token, tokenErr := utils.CreateAccessToken(user.ID, user.Role)
	if tokenErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"user": user, "accessToken": token})
}
