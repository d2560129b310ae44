package main

import (
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/app"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
