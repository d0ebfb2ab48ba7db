package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchCatalogTool defines the search_catalog MCP tool.
var searchCatalogTool = mcp.NewTool("search_catalog",
	mcp.WithDescription("Search the product catalog. A product code or exact product name returns that product; anything else is matched by meaning."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Product code, product name, or a description of what is needed"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of similar products to return (default 6)"),
	),
)

// searchCatalogBatchTool defines the search_catalog_batch MCP tool.
var searchCatalogBatchTool = mcp.NewTool("search_catalog_batch",
	mcp.WithDescription("Run several catalog searches at once. Results are returned in query order."),
	mcp.WithArray("queries",
		mcp.Required(),
		mcp.Description("Search queries"),
		mcp.WithStringItems(),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of similar products per query (default 6)"),
	),
)

// askProductQuestionTool defines the ask_product_question MCP tool.
var askProductQuestionTool = mcp.NewTool("ask_product_question",
	mcp.WithDescription("Ask the product assistant a question. Returns a salesperson-style answer and the recommended products."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The customer's question"),
	),
	mcp.WithString("session_id",
		mcp.Description("Conversation to continue; omit to use this client's default conversation"),
	),
	mcp.WithBoolean("clear_history",
		mcp.Description("Start the conversation afresh"),
	),
)
