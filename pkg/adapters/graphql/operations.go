package graphql

// Operation names. The development server dispatches on these.
const (
	OpListTodos    = "ListTodos"
	OpCreateTodo   = "CreateTodo"
	OpUpdateTodo   = "UpdateTodo"
	OpDeleteTodo   = "DeleteTodo"
	OpOnCreateTodo = "OnCreateTodo"
)

const noteFields = `id
    name
    description
    completed
    clientId`

// Documents sent for each operation.
const (
	ListTodosQuery = `query ListTodos {
  listTodos {
    items {
    ` + noteFields + `
    }
  }
}`

	CreateTodoMutation = `mutation CreateTodo($input: CreateTodoInput!) {
  createTodo(input: $input) {
    ` + noteFields + `
  }
}`

	UpdateTodoMutation = `mutation UpdateTodo($input: UpdateTodoInput!) {
  updateTodo(input: $input) {
    ` + noteFields + `
  }
}`

	DeleteTodoMutation = `mutation DeleteTodo($input: DeleteTodoInput!) {
  deleteTodo(input: $input) {
    ` + noteFields + `
  }
}`

	OnCreateTodoSubscription = `subscription OnCreateTodo {
  onCreateTodo {
    ` + noteFields + `
  }
}`
)
