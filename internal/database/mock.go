package database

import (
	"github.com/stretchr/testify/mock"
)

type MockMessagramRepository struct {
	mock.Mock
}

func (m *MockMessagramRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockMessagramRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessagramRepository) GetAccountByUsername(username string) (Account, error) {
	args := m.Called(username)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessagramRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessagramRepository) SearchAccounts(query, exclude string) ([]Account, error) {
	args := m.Called(query, exclude)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockMessagramRepository) CreateMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessagramRepository) GlobalMessages() ([]Message, error) {
	args := m.Called()
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessagramRepository) ConversationMessages(a, b string) ([]Message, error) {
	args := m.Called(a, b)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessagramRepository) UpdateMessageSender(oldName, newName string) error {
	args := m.Called(oldName, newName)
	return args.Error(0)
}
func (m *MockMessagramRepository) UpdateMessageReceiver(oldName, newName string) error {
	args := m.Called(oldName, newName)
	return args.Error(0)
}
func (m *MockMessagramRepository) CreateFriendEdge(owner, target, status string) error {
	args := m.Called(owner, target, status)
	return args.Error(0)
}
func (m *MockMessagramRepository) EnsureFriendEdge(owner, target, status string) error {
	args := m.Called(owner, target, status)
	return args.Error(0)
}
func (m *MockMessagramRepository) UpdateFriendEdgeStatus(owner, target, status string) error {
	args := m.Called(owner, target, status)
	return args.Error(0)
}
func (m *MockMessagramRepository) DeleteFriendEdge(owner, target string) error {
	args := m.Called(owner, target)
	return args.Error(0)
}
func (m *MockMessagramRepository) ListFriends(username string) ([]Account, error) {
	args := m.Called(username)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockMessagramRepository) ListFriendRequests(username string) ([]Account, error) {
	args := m.Called(username)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockMessagramRepository) UpdateFriendEdgeOwner(oldName, newName string) error {
	args := m.Called(oldName, newName)
	return args.Error(0)
}
func (m *MockMessagramRepository) UpdateFriendEdgeTarget(oldName, newName string) error {
	args := m.Called(oldName, newName)
	return args.Error(0)
}
