package main

// General API documentation for swaggo. Run `swag init -g cmd/clinicd/docs.go -o docs` to regenerate.
//
// @title           clinicd API
// @version         1.0
// @description     Clinical text analysis: classification, summarization and recommendation generation.
//
// @contact.name   clinicd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
