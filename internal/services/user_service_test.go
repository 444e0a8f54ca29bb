package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/familyfund/backend/internal/models"
)

func userRouter(service *UserService) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/admin/users", service.ListUsers)
	r.Post("/admin/users", service.CreateUser)
	r.Put("/admin/users/{userId}/role", service.UpdateUserRole)
	r.Put("/admin/users/{userId}/boxes", service.UpdateUserBoxes)
	return r
}

func TestUserService_CreateUser(t *testing.T) {
	setupAuthConfig(t)

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	auth := NewAuthService(db, nil, testBoxConfig())
	service := NewUserService(db, auth, testBoxConfig())
	router := userRouter(service)

	t.Run("member is created with box memberships and seeded balances", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").
			WithArgs(sqlmock.AnyArg(), "member@example.com", sqlmock.AnyArg(), "New Member",
				models.RoleMember, pq.Array([]string{"1"}), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO balances").
			WithArgs(sqlmock.AnyArg(), "1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO balances").
			WithArgs(sqlmock.AnyArg(), "2", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, "POST", "/admin/users", CreateUserRequest{
			Email:    "member@example.com",
			Password: "password123",
			Name:     "New Member",
			Boxes:    []string{"1"},
		}))

		assert.Equal(t, http.StatusCreated, w.Code)

		var user models.User
		json.Unmarshal(w.Body.Bytes(), &user)
		assert.Equal(t, models.RoleMember, user.Role)
		assert.Equal(t, []string{"1"}, user.Boxes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown box membership is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, "POST", "/admin/users", CreateUserRequest{
			Email:    "member@example.com",
			Password: "password123",
			Name:     "New Member",
			Boxes:    []string{"9"},
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid role is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, "POST", "/admin/users", CreateUserRequest{
			Email:    "member@example.com",
			Password: "password123",
			Name:     "New Member",
			Role:     "superadmin",
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUserService_ListUsers(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db, NewAuthService(db, nil, testBoxConfig()), testBoxConfig())
	router := userRouter(service)

	userColumns := []string{"id", "email", "name", "role", "boxes", "created_at", "updated_at"}

	t.Run("role filter restricts the query", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, name, role, boxes, created_at, updated_at FROM users WHERE role = \\$1 ORDER BY created_at ASC").
			WithArgs(models.RoleModerator).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("mod1", "mod@example.com", "Mod", models.RoleModerator, "{1,2}", testTime(), testTime()))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/users?role=moderator", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Users []models.User `json:"users"`
			Count int           `json:"count"`
		}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, 1, response.Count)
		assert.Equal(t, []string{"1", "2"}, response.Users[0].Boxes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/users?role=root", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUserService_UpdateUserRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db, NewAuthService(db, nil, testBoxConfig()), testBoxConfig())
	router := userRouter(service)

	t.Run("role is updated", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET role = \\$1, updated_at = \\$2 WHERE id = \\$3").
			WithArgs(models.RoleModerator, sqlmock.AnyArg(), "user1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, "PUT", "/admin/users/user1/role",
			UpdateRoleRequest{Role: models.RoleModerator}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user fails with not found", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET role = \\$1, updated_at = \\$2 WHERE id = \\$3").
			WithArgs(models.RoleAdmin, sqlmock.AnyArg(), "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, "PUT", "/admin/users/ghost/role",
			UpdateRoleRequest{Role: models.RoleAdmin}))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid role is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, "PUT", "/admin/users/user1/role",
			UpdateRoleRequest{Role: "owner"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUserService_UpdateUserBoxes(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db, NewAuthService(db, nil, testBoxConfig()), testBoxConfig())
	router := userRouter(service)

	t.Run("memberships are replaced and new balances seeded", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users SET boxes = \\$1, updated_at = \\$2 WHERE id = \\$3").
			WithArgs(pq.Array([]string{"1", "2"}), sqlmock.AnyArg(), "user1").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO balances").
			WithArgs("user1", "1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO balances").
			WithArgs("user1", "2", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, "PUT", "/admin/users/user1/boxes",
			UpdateBoxesRequest{Boxes: []string{"1", "2"}}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown box is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, "PUT", "/admin/users/user1/boxes",
			UpdateBoxesRequest{Boxes: []string{"9"}}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown user fails with not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users SET boxes = \\$1, updated_at = \\$2 WHERE id = \\$3").
			WithArgs(pq.Array([]string{"1"}), sqlmock.AnyArg(), "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, "PUT", "/admin/users/ghost/boxes",
			UpdateBoxesRequest{Boxes: []string{"1"}}))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
